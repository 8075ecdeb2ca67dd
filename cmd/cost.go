package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"triage/internal/clix"
	"triage/internal/models"
)

var (
	costListLimit  int
	costListOffset int
)

var errLedgerNotConfigured = errors.New("usage ledger is not configured (set database.dsn)")

// costCmd represents the base command for cost operations.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "View AI usage and costs",
	Long:  `Provides subcommands to list recorded model calls and view cost totals.`,
}

// costListCmd represents the command to list cost logs.
var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded AI usage",
	Long:  `Displays a paginated list of recorded model calls, newest first, with token counts and cost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if appInstance.CostService == nil {
			return errLedgerNotConfigured
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		logs, err := appInstance.CostService.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list cost logs: %w", err)
		}

		if len(logs) == 0 {
			fmt.Println("No usage recorded.")
			return nil
		}

		renderUsage(os.Stdout, logs)
		fmt.Printf("\nDisplayed %d logs.\n", len(logs))
		return nil
	},
}

// costSummaryCmd represents the command to view cost summary.
var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show total AI cost and token usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if appInstance.CostService == nil {
			return errLedgerNotConfigured
		}

		summary, err := appInstance.CostService.GetSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get cost summary: %w", err)
		}

		renderSummary(os.Stdout, summary)
		return nil
	},
}

func init() {
	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costSummaryCmd)

	costListCmd.Flags().IntVarP(&costListLimit, "limit", "l", 50, "Number of logs to display")
	costListCmd.Flags().IntVarP(&costListOffset, "offset", "o", 0, "Number of logs to skip")
}

func renderUsage(w io.Writer, logs []*models.AIUsageLog) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Timestamp", "Provider", "Operation", "Model", "In Tokens", "Out Tokens", "Cost", "Request ID"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, l := range logs {
		requestID := "N/A"
		if l.RequestID != nil {
			requestID = *l.RequestID
		}
		table.Append([]string{
			strconv.FormatInt(l.ID, 10),
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			l.ProviderName,
			l.Operation,
			l.ModelName,
			strconv.Itoa(l.InputTokens),
			strconv.Itoa(l.OutputTokens),
			fmt.Sprintf("%.8f", l.Cost),
			requestID,
		})
	}
	table.Render()
}

func renderSummary(w io.Writer, s models.UsageSummary) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"Calls", strconv.FormatInt(s.Calls, 10)},
		{"Total Cost", fmt.Sprintf("$%.6f", s.TotalCost)},
		{"Input Tokens", strconv.FormatInt(s.TotalInputTokens, 10)},
		{"Output Tokens", strconv.FormatInt(s.TotalOutputTokens, 10)},
	})
	fmt.Fprintln(w, "AI Usage Cost Summary:")
	table.Render()
}
