// Package migrate provides the command that runs the v2 to v3 migration.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linguanet/linguanet-go/internal/buildinfo"
	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/logging"
	"github.com/linguanet/linguanet-go/internal/migration"
	"github.com/linguanet/linguanet-go/internal/notify"
	"github.com/linguanet/linguanet-go/internal/observability"
	"github.com/linguanet/linguanet-go/internal/preflight"
	"github.com/linguanet/linguanet-go/internal/progress"
	"github.com/linguanet/linguanet-go/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy v2 data into the v3 schema",
		Long: `Migrate reads the legacy v2 tables of this installation and writes their
data into the v3 schema. Every write is idempotent, so the command is safe
to re-run after fixing whatever a previous run reported as failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The flag enables the progress server without a config edit.
			if cmd.Flags().Changed("listen") {
				settings.Progress.Enabled = true
			}
			return runMigration(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the migrate command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringSliceVar(&settings.Migration.Entities, "entities", viper.GetStringSlice("migration.entities"), "Entities to migrate (modules, relationships, redirections, languages)")
	cmd.Flags().BoolVar(&settings.Migration.DryRun, "dry-run", viper.GetBool("migration.dryrun"), "Report what would change without writing to the target schema")
	cmd.Flags().StringVar(&settings.Migration.ReportPath, "report", viper.GetString("migration.reportpath"), "Write a YAML run report to this path")
	cmd.Flags().IntVar(&settings.Migration.Throttle, "throttle", viper.GetInt("migration.throttle"), "Maximum writes per second against the store, 0 for unlimited")
	cmd.Flags().BoolVar(&settings.Migration.FailOnPartial, "fail-on-partial", viper.GetBool("migration.failonpartial"), "Exit non-zero when any record failed to migrate")
	cmd.Flags().BoolVar(&settings.Migration.SkipPreflight, "skip-preflight", viper.GetBool("migration.skippreflight"), "Skip the environment checks before the run")
	cmd.Flags().StringVar(&settings.Progress.Listen, "listen", viper.GetString("progress.listen"), "Serve live progress and metrics on this address while the run executes")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

func runMigration(ctx context.Context, settings *conf.Settings) error {
	// The first interrupt cancels the run cleanly; the summary of what was
	// already migrated is still persisted and printed.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, closeLog := migrationLogger(settings)
	defer closeLog()

	s, err := store.Open(settings, logging.ForService("store"))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if settings.Migration.SkipPreflight {
		log.Warn("preflight checks skipped by configuration")
	} else {
		result := preflight.New(s, settings, logging.ForService("preflight")).Run(ctx)
		printFailedChecks(result)
		if !result.CanMigrate {
			return fmt.Errorf("%d critical preflight checks failed, not migrating", result.CriticalFailures)
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	notifier, err := notify.New(settings.Notify.Enabled, settings.Notify.URLs, logging.ForService("notify"))
	if err != nil {
		return err
	}

	runner := migration.NewRunner(s, log, migration.Options{
		Entities: settings.Migration.Entities,
		DryRun:   settings.Migration.DryRun,
		Metrics:  m.Migration,
	})

	if settings.Progress.Enabled {
		build := &buildinfo.Context{Version: settings.Version, BuildDate: settings.BuildDate}
		srv := progress.New(settings.Progress.Listen, runner, m, build, logging.ForService("progress"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("progress server shutdown failed", "error", err)
			}
		}()
	}

	summary, fatal := runner.Run(ctx)

	if settings.Migration.ReportPath != "" {
		if err := migration.WriteReport(settings.Migration.ReportPath, summary); err != nil {
			log.Error("failed to write run report", "path", settings.Migration.ReportPath, "error", err)
		} else {
			fmt.Printf("Run report written to %s\n", settings.Migration.ReportPath)
		}
	}

	if notifier.Enabled() {
		if err := notifier.RunFinished(summary); err != nil {
			log.Error("failed to send run notification", "error", err)
		}
	}

	printSummary(summary)

	if fatal != nil {
		return fmt.Errorf("migration failed: %w", fatal)
	}
	if settings.Migration.FailOnPartial && summary.TotalFailed() > 0 {
		return fmt.Errorf("%d records failed to migrate", summary.TotalFailed())
	}
	return nil
}

// migrationLogger returns the logger the run writes to. With file logging
// enabled the detailed per-record log lands in a rotated file; the console
// keeps the final summary and any fatal error.
func migrationLogger(settings *conf.Settings) (*slog.Logger, func()) {
	log := logging.ForService("migration")
	if !settings.Main.Log.Enabled {
		return log, func() {}
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	rotation := logging.RotationSettings{
		Policy:    settings.Main.Log.Rotation,
		MaxSizeMB: int(settings.Main.Log.MaxSize / (1024 * 1024)),
	}

	fileLog, closeFunc, err := logging.NewFileLogger(settings.Main.Log.Path, "migration", level, rotation)
	if err != nil {
		log.Warn("file log unavailable, logging to console only",
			"path", settings.Main.Log.Path, "error", err)
		return log, func() {}
	}
	return fileLog, func() { _ = closeFunc() }
}

// printFailedChecks lists the checks that did not pass. The check command
// prints the full result; before a migration only problems matter.
func printFailedChecks(result *preflight.Result) {
	for _, check := range result.Checks {
		switch check.Status {
		case preflight.CheckStatusFailed, preflight.CheckStatusError:
			fmt.Printf("❌ %s: %s\n", check.Name, check.Message)
		case preflight.CheckStatusWarning:
			fmt.Printf("⚠️ %s: %s\n", check.Name, check.Message)
		}
	}
}

func printSummary(summary *migration.Summary) {
	fmt.Println()
	if summary.CheckMode {
		fmt.Println("Check mode is set on this installation, the run was forced to a dry run.")
	}
	if summary.DryRun {
		fmt.Println("Dry run, nothing was written.")
	}

	fmt.Printf("Entity         Migrated  Skipped  Failed\n")
	fmt.Printf("─────────────  ────────  ───────  ──────\n")
	for i := range summary.Entities {
		r := &summary.Entities[i]
		fmt.Printf("%-13s  %8d  %7d  %6d\n", r.Entity, r.Migrated, r.Skipped, r.Failed)
	}
	fmt.Printf("─────────────  ────────  ───────  ──────\n")

	for i := range summary.Entities {
		for _, msg := range summary.Entities[i].Errors {
			fmt.Printf("   %s: %s\n", summary.Entities[i].Entity, msg)
		}
	}

	switch {
	case summary.Status == migration.RunStatusFailed:
		fmt.Printf("\n❌ Run %s failed after %s: %s\n", summary.RunID, summary.Duration, summary.FatalError)
	case summary.TotalFailed() > 0:
		fmt.Printf("\n⚠️ Run %s completed in %s with %d failed records, fix the cause and re-run\n",
			summary.RunID, summary.Duration, summary.TotalFailed())
	default:
		fmt.Printf("\n✅ Run %s completed in %s\n", summary.RunID, summary.Duration)
	}
}
