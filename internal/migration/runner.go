package migration

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linguanet/linguanet-go/internal/observability/metrics"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

// RunStatus is the lifecycle state of a migration run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Entity names as used in configuration and reports.
const (
	EntityModules       = "modules"
	EntityRelationships = "relationships"
	EntityRedirections  = "redirections"
	EntityLanguages     = "languages"
)

// EntityOrder is the order entities migrate in, regardless of how the
// selection was written. Relationships and redirections read the site
// registry; modules go first because the module map gates v3 features.
var EntityOrder = []string{
	EntityModules,
	EntityRelationships,
	EntityRedirections,
	EntityLanguages,
}

// Summary is the durable record of one run. It is persisted to the run
// bookkeeping table and optionally exported as a YAML report.
type Summary struct {
	RunID      string         `yaml:"run_id" json:"run_id"`
	Status     RunStatus      `yaml:"status" json:"status"`
	DryRun     bool           `yaml:"dry_run" json:"dry_run"`
	CheckMode  bool           `yaml:"check_mode,omitempty" json:"check_mode,omitempty"`
	StartedAt  time.Time      `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at" json:"finished_at"`
	Duration   string         `yaml:"duration,omitempty" json:"duration,omitempty"`
	Entities   []EntityReport `yaml:"entities" json:"entities"`
	FatalError string         `yaml:"fatal_error,omitempty" json:"fatal_error,omitempty"`
}

// TotalMigrated sums migrated records across entities.
func (s *Summary) TotalMigrated() int {
	n := 0
	for i := range s.Entities {
		n += s.Entities[i].Migrated
	}
	return n
}

// TotalFailed sums failed records across entities.
func (s *Summary) TotalFailed() int {
	n := 0
	for i := range s.Entities {
		n += s.Entities[i].Failed
	}
	return n
}

// Progress is a point-in-time snapshot of a run, safe to hand to the
// progress server while the run continues.
type Progress struct {
	RunID         string         `json:"run_id"`
	Status        RunStatus      `json:"status"`
	DryRun        bool           `json:"dry_run"`
	CurrentEntity string         `json:"current_entity,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	Entities      []EntityReport `json:"entities"`
}

// Options configures a Runner.
type Options struct {
	// Entities selects which entities migrate. Order does not matter;
	// execution always follows EntityOrder.
	Entities []string
	// DryRun reports what would change without writing to the target
	// schema.
	DryRun bool
	// Metrics receives per-entity and per-run observations. Optional.
	Metrics *metrics.MigrationMetrics
}

// Runner executes the selected entity migrators in order. Runs are
// single-threaded: legacy installations are small enough that clarity of
// the failure report wins over sweep time.
type Runner struct {
	store    Store
	log      *slog.Logger
	metrics  *metrics.MigrationMetrics
	entities []string
	dryRun   bool

	mu       sync.Mutex
	progress Progress
}

func NewRunner(s Store, log *slog.Logger, opts Options) *Runner {
	return &Runner{
		store:    s,
		log:      log,
		metrics:  opts.Metrics,
		entities: opts.Entities,
		dryRun:   opts.DryRun,
	}
}

// Run executes the migration once. Per-record and per-entity failures are
// recorded in the summary and do not abort the run; a lost store
// connection does, because every remaining statement would fail the same
// way. The returned error is non-nil only when the run as a whole failed.
//
// The summary is persisted to the run bookkeeping table on a best-effort
// basis even for failed runs, so operators can inspect what happened after
// the process exits.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.New().String(),
		Status:    RunStatusPending,
		DryRun:    r.dryRun,
		StartedAt: time.Now().UTC(),
	}
	r.publish(summary, "")

	var fatal error
	checkMode, err := r.checkModeForced(ctx)
	if err != nil {
		fatal = err
	} else {
		if checkMode && !r.dryRun {
			r.log.Warn("check mode option is set, forcing dry run",
				"option", schema.OptionCheckMode)
		}
		summary.DryRun = r.dryRun || checkMode
		summary.CheckMode = checkMode

		summary.Status = RunStatusRunning
		r.publish(summary, "")
		r.log.Info("migration run started",
			"run_id", summary.RunID,
			"entities", r.entities,
			"dry_run", summary.DryRun)

		fatal = r.runEntities(ctx, summary)
	}

	if fatal != nil {
		summary.Status = RunStatusFailed
		summary.FatalError = fatal.Error()
	} else {
		summary.Status = RunStatusCompleted
	}
	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()
	r.publish(summary, "")

	if r.metrics != nil {
		r.metrics.RecordRun(string(summary.Status), summary.FinishedAt.Sub(summary.StartedAt))
	}

	// The record must outlive a cancelled run context.
	if err := saveRun(context.WithoutCancel(ctx), r.store, summary); err != nil {
		r.log.Error("failed to persist run record", "run_id", summary.RunID, "error", err)
	}

	r.log.Info("migration run finished",
		"run_id", summary.RunID,
		"status", summary.Status,
		"migrated", summary.TotalMigrated(),
		"failed", summary.TotalFailed(),
		"duration", summary.Duration)
	return summary, fatal
}

// runEntities sweeps the selected migrators in canonical order. The
// returned error is the fatal condition that stopped the run, or nil.
func (r *Runner) runEntities(ctx context.Context, summary *Summary) error {
	for _, mig := range r.migrators(summary.DryRun) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.publish(summary, mig.Name())
		r.log.Info("migrating entity", "entity", mig.Name())

		report, err := mig.Run(ctx)
		if report == nil {
			report = NewEntityReport(mig.Name())
		}
		if err != nil {
			report.Fail(mig.Name(), err)
		}
		summary.Entities = append(summary.Entities, *report)
		if r.metrics != nil {
			r.metrics.RecordEntity(report.Entity, report.Migrated, report.Skipped, report.Failed)
		}
		r.publish(summary, mig.Name())

		if err != nil {
			if store.IsConnectionLost(err) {
				r.log.Error("store connection lost, aborting run",
					"entity", mig.Name(), "error", err)
				return err
			}
			r.log.Error("entity migration failed, continuing with next entity",
				"entity", mig.Name(), "error", err)
		}
	}
	return nil
}

// migrators builds the selected migrators in canonical order.
func (r *Runner) migrators(dryRun bool) []Migrator {
	selected := make(map[string]bool, len(r.entities))
	for _, e := range r.entities {
		selected[strings.ToLower(strings.TrimSpace(e))] = true
	}

	out := make([]Migrator, 0, len(EntityOrder))
	for _, name := range EntityOrder {
		if !selected[name] {
			continue
		}
		switch name {
		case EntityModules:
			out = append(out, NewModulesMigrator(r.store, r.log, dryRun))
		case EntityRelationships:
			out = append(out, NewRelationshipsMigrator(r.store, r.log, dryRun))
		case EntityRedirections:
			out = append(out, NewRedirectionsMigrator(r.store, r.log, dryRun))
		case EntityLanguages:
			out = append(out, NewLanguagesMigrator(r.store, r.log, dryRun))
		}
	}
	return out
}

// checkModeForced reads the network option that installations set to vet a
// migration before committing to it.
func (r *Runner) checkModeForced(ctx context.Context) (bool, error) {
	raw, found, err := r.store.NetworkOption(ctx, schema.OptionCheckMode)
	if err != nil {
		return false, err
	}
	return found && store.AsBool(raw), nil
}

// publish updates the progress snapshot.
func (r *Runner) publish(s *Summary, current string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = Progress{
		RunID:         s.RunID,
		Status:        s.Status,
		DryRun:        s.DryRun,
		CurrentEntity: current,
		StartedAt:     s.StartedAt,
		Entities:      append([]EntityReport(nil), s.Entities...),
	}
}

// Progress returns a snapshot of the run's current state. Safe to call
// from other goroutines while Run executes.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.progress
	p.Entities = append([]EntityReport(nil), p.Entities...)
	return p
}
