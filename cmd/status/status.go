// Package status provides the command that reports the last migration run.
package status

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/logging"
	"github.com/linguanet/linguanet-go/internal/migration"
	"github.com/linguanet/linguanet-go/internal/store"
)

// Command creates the status command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most recent migration run of this installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), settings)
		},
	}

	return cmd
}

func runStatus(ctx context.Context, settings *conf.Settings) error {
	s, err := store.Open(settings, logging.ForService("store"))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	summary, err := migration.LatestRun(ctx, s)
	if err != nil {
		if errors.IsNotFound(err) {
			fmt.Println("No migration has run against this installation yet.")
			return nil
		}
		return err
	}

	fmt.Printf("Run:      %s\n", summary.RunID)
	fmt.Printf("Status:   %s\n", summary.Status)
	if summary.DryRun {
		fmt.Printf("Mode:     dry run\n")
	}
	fmt.Printf("Started:  %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Duration: %s\n", summary.Duration)

	fmt.Printf("\nEntity         Migrated  Skipped  Failed\n")
	for i := range summary.Entities {
		r := &summary.Entities[i]
		fmt.Printf("%-13s  %8d  %7d  %6d\n", r.Entity, r.Migrated, r.Skipped, r.Failed)
	}

	if summary.FatalError != "" {
		fmt.Printf("\nFatal error: %s\n", summary.FatalError)
	}
	if failed := summary.TotalFailed(); failed > 0 {
		fmt.Printf("\n%d records failed, the run can be repeated safely after fixing the cause.\n", failed)
	}
	return nil
}
