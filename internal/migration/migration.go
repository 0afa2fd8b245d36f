// Package migration contains the entity migrators that move legacy v2
// multisite data into the v3 schema, and the runner that sequences them.
//
// Every migrator is idempotent: records that already exist in the target
// schema are counted as skipped, so a run can be repeated after a partial
// failure without duplicating data. Migrators never delete or modify
// legacy rows.
package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linguanet/linguanet-go/internal/store"
)

// Store is the slice of the relational layer the migrators consume.
// *store.Store satisfies it; tests substitute decorated implementations
// to force failures on specific statements.
type Store interface {
	Select(ctx context.Context, query string, args ...any) ([]store.Row, error)
	SelectOne(ctx context.Context, query string, args ...any) (store.Row, error)
	Insert(ctx context.Context, table string, rec store.Row) (int64, error)
	Update(ctx context.Context, table string, set, where store.Row) (int64, error)
	CreateTable(ctx context.Context, table string, cols []store.ColumnDef, primaryKeys []string) error
	DropTable(ctx context.Context, table string) error
	TableName(logical string) string
	SiteTableName(siteID uint64, logical string) string
	TableExists(ctx context.Context, table string) bool
	Sites(ctx context.Context) ([]store.Site, error)
	NetworkOption(ctx context.Context, name string) (string, bool, error)
	SiteOption(ctx context.Context, siteID uint64, name string) (string, bool, error)
	SetNetworkOption(ctx context.Context, name, value string) error
}

// Outcome classifies what happened to a single legacy record.
type Outcome int

const (
	// OutcomeMigrated means the record was written to the target schema,
	// or would have been in dry-run mode.
	OutcomeMigrated Outcome = iota
	// OutcomeSkipped means the target already holds the record, or the
	// record is deliberately not carried forward.
	OutcomeSkipped
	// OutcomeFailed means the record could not be migrated.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMigrated:
		return "migrated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Migrator migrates one legacy entity end to end.
type Migrator interface {
	// Name returns the entity name used in configuration, reports and logs.
	Name() string
	// Run migrates every record of the entity. Per-record failures are
	// recorded in the report and do not stop the sweep; the returned error
	// is non-nil only when the entity as a whole could not be processed.
	Run(ctx context.Context) (*EntityReport, error)
}

// EntityReport counts per-record outcomes for one entity.
type EntityReport struct {
	Entity   string   `yaml:"entity" json:"entity"`
	Migrated int      `yaml:"migrated" json:"migrated"`
	Skipped  int      `yaml:"skipped" json:"skipped"`
	Failed   int      `yaml:"failed" json:"failed"`
	Errors   []string `yaml:"errors,omitempty" json:"errors,omitempty"`
}

// NewEntityReport returns an empty report for the named entity.
func NewEntityReport(entity string) *EntityReport {
	return &EntityReport{Entity: entity}
}

// Fail records a per-record failure with enough identity to find the
// offending legacy row afterwards.
func (r *EntityReport) Fail(identity string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", identity, err))
}

// Total returns the number of records the sweep touched.
func (r *EntityReport) Total() int {
	return r.Migrated + r.Skipped + r.Failed
}

// recordOutcome folds one record's result into the report. It returns a
// non-nil error only when the sweep must stop, which is the case for lost
// store connections: retrying record by record against a dead connection
// would fail every remaining row.
func recordOutcome(log *slog.Logger, report *EntityReport, identity string, outcome Outcome, err error) error {
	if err != nil {
		if store.IsConnectionLost(err) {
			return err
		}
		log.Warn("record not migrated",
			"entity", report.Entity,
			"record", identity,
			"error", err)
		report.Fail(identity, err)
		return nil
	}

	switch outcome {
	case OutcomeMigrated:
		report.Migrated++
	case OutcomeSkipped:
		report.Skipped++
	}
	return nil
}
