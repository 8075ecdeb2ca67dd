package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"triage/internal/app"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check provider, database and Redis connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		return runDoctor(ctx, os.Stdout, appInstance)
	},
}

// runDoctor reports each dependency of a. The provider is only reported
// by name because app initialisation already refuses an inactive one.
func runDoctor(ctx context.Context, w io.Writer, a *app.App) error {
	ok := color.GreenString("ok")
	failed := 0
	report := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "%-12s %s (%v)\n", name, color.RedString("FAILED"), err)
			return
		}
		fmt.Fprintf(w, "%-12s %s\n", name, ok)
	}
	skip := func(name, reason string) {
		fmt.Fprintf(w, "%-12s %s (%s)\n", name, color.YellowString("skipped"), reason)
	}

	fmt.Fprintf(w, "Classifier:  %s\n", a.Classifier.Name())
	if a.Completions == nil {
		skip("provider", "heuristic classifier, no external calls")
	} else {
		fmt.Fprintf(w, "%-12s %s (%s/%s)\n", "provider", ok, a.Completions.Name(), a.Completions.ModelName())
	}

	if a.UsageStore == nil {
		skip("database", "database.dsn is empty")
	} else {
		report("database", a.UsageStore.Ping(ctx))
	}

	if a.JobClient == nil {
		skip("redis", "redis.address is empty")
	} else {
		report("redis", a.JobClient.Ping())
	}

	if failed > 0 {
		return errors.New("one or more checks failed")
	}
	return nil
}
