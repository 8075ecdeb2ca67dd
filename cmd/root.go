package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"triage/internal/app"
	"triage/internal/config"
	"triage/internal/inputprocessor"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Customer message triage service",
	Long: `triage classifies inbound customer messages as bug reports, feature requests
or general inquiries, extracts a structured payload for each and drafts a reply.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipAppInit(cmd) {
			return nil
		}

		cfg, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cfg, inputprocessor.New())
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return nil
		}
		return appInstance.Close()
	},
}

func skipAppInit(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", "triage":
		return true
	}
	return cmd.Parent() != nil && cmd.Parent().Name() == "completion"
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(costCmd)
}
