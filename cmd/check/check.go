// Package check provides the preflight inspection command.
package check

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/logging"
	"github.com/linguanet/linguanet-go/internal/preflight"
	"github.com/linguanet/linguanet-go/internal/store"
)

// Command creates the check command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the installation is ready to migrate",
		Long: `Check runs the preflight checks a migration would run, without touching
any data: store connectivity, presence of the legacy and target tables,
disk headroom and the check-mode flag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd.Context(), settings)
		},
	}

	return cmd
}

func runChecks(ctx context.Context, settings *conf.Settings) error {
	s, err := store.Open(settings, logging.ForService("store"))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	result := preflight.New(s, settings, logging.ForService("preflight")).Run(ctx)

	for _, check := range result.Checks {
		fmt.Printf("%s %s: %s\n", statusIcon(check.Status), check.Name, check.Message)
	}

	switch {
	case result.AllPassed:
		fmt.Println("\n✅ Installation is ready to migrate")
	case result.CanMigrate:
		fmt.Printf("\n⚠️ Installation can migrate, %d warnings\n", result.Warnings)
	default:
		return fmt.Errorf("%d critical checks failed", result.CriticalFailures)
	}
	return nil
}

func statusIcon(status string) string {
	switch status {
	case preflight.CheckStatusPassed:
		return "✅"
	case preflight.CheckStatusFailed, preflight.CheckStatusError:
		return "❌"
	case preflight.CheckStatusWarning:
		return "⚠️"
	default:
		return "➖"
	}
}
