package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"triage/internal/clix"
	"triage/internal/models"
	"triage/internal/requestctx"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify a single customer message",
	Long: `Classifies one message and prints the message type, the extracted payload and
the drafted customer reply. The message is read from --message, which may also
name a file, or from a positional file argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		params, err := clix.ParseMessage(cmd.Flags(), args)
		if err != nil {
			return err
		}

		ctx := requestctx.WithRequestID(cmd.Context(), uuid.NewString())
		input, err := appInstance.Processor.Process(ctx, params.Input)
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		result, err := appInstance.MessageService.Process(ctx, models.CustomerMessage{
			CustomerID: params.CustomerID,
			Product:    params.Product,
			Message:    input.Body,
		})
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}

		if classifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		renderProcessed(os.Stdout, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("customer-id", "", "Customer identifier (required)")
	classifyCmd.Flags().String("product", "", "Product the message is about (required)")
	classifyCmd.Flags().StringP("message", "m", "", "Message text or path to a file containing it")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the raw JSON response")
}

func messageTypeLabel(t models.MessageType) string {
	switch t {
	case models.MessageTypeBugReport:
		return color.RedString(string(t))
	case models.MessageTypeFeatureRequest:
		return color.CyanString(string(t))
	}
	return color.GreenString(string(t))
}

// renderProcessed prints a ProcessedMessage as a two-column table followed
// by the customer reply.
func renderProcessed(w io.Writer, p *models.ProcessedMessage) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)
	table.SetAutoWrapText(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"Message Type", messageTypeLabel(p.MessageType)})
	table.Append([]string{"Confidence", strconv.FormatFloat(p.ConfidenceScore, 'f', 2, 64)})

	switch d := p.ResponseData.(type) {
	case models.BugReportData:
		t := d.Ticket
		table.AppendBulk([][]string{
			{"Ticket", t.ID},
			{"Title", t.Title},
			{"Severity", t.Severity},
			{"Priority", t.Priority},
			{"Component", t.AffectedComponent},
			{"Team", t.AssignedTeam},
			{"Steps", numbered(t.ReproductionSteps)},
		})
	case models.FeatureRequestData:
		r := d.ProductRequirement
		table.AppendBulk([][]string{
			{"Requirement", r.ID},
			{"Title", r.Title},
			{"Description", r.Description},
			{"User Story", r.UserStory},
			{"Business Value", r.BusinessValue},
			{"Complexity", r.ComplexityEstimate},
			{"Components", strings.Join(r.AffectedComponents, ", ")},
			{"Status", r.Status},
		})
	case models.GeneralInquiryData:
		review := "No"
		if d.RequiresHumanReview {
			review = color.YellowString("Yes")
		}
		resources := make([]string, 0, len(d.SuggestedResources))
		for _, r := range d.SuggestedResources {
			resources = append(resources, fmt.Sprintf("%s (%s)", r.Title, r.URL))
		}
		table.AppendBulk([][]string{
			{"Category", d.InquiryCategory},
			{"Human Review", review},
			{"Resources", strings.Join(resources, "\n")},
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint("Customer response:"), p.CustomerResponse)
}

func numbered(steps []string) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(lines, "\n")
}
