package migration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

const runTimeFormat = "2006-01-02 15:04:05"

// runColumns describes the run bookkeeping table. The full summary is kept
// as a JSON blob next to the queryable envelope columns.
func runColumns() []store.ColumnDef {
	return []store.ColumnDef{
		{Name: "id", Type: store.FieldType{Name: "bigint", Size: 20, Modifier: "unsigned"}, NotNull: true, AutoIncrement: true},
		{Name: "run_id", Type: store.FieldType{Name: "char", Size: 36}, NotNull: true},
		{Name: "status", Type: store.FieldType{Name: "varchar", Size: 20}, NotNull: true},
		{Name: "dry_run", Type: store.FieldType{Name: "tinyint", Size: 1}, NotNull: true, Default: &store.DefaultValue{Value: 0}},
		{Name: "started_at", Type: store.FieldType{Name: "varchar", Size: 32}, NotNull: true},
		{Name: "finished_at", Type: store.FieldType{Name: "varchar", Size: 32}, NotNull: true},
		{Name: "summary", Type: store.FieldType{Name: "text"}},
	}
}

// saveRun appends one run record, creating the bookkeeping table on first
// use.
func saveRun(ctx context.Context, s Store, summary *Summary) error {
	table := s.TableName(schema.TableMigrationRuns)
	if err := s.CreateTable(ctx, table, runColumns(), []string{"id"}); err != nil {
		return err
	}

	blob, err := json.Marshal(summary)
	if err != nil {
		return errors.New(err).Component("migration").Build()
	}
	_, err = s.Insert(ctx, table, store.Row{
		"run_id":      summary.RunID,
		"status":      string(summary.Status),
		"dry_run":     summary.DryRun,
		"started_at":  summary.StartedAt.UTC().Format(runTimeFormat),
		"finished_at": summary.FinishedAt.UTC().Format(runTimeFormat),
		"summary":     string(blob),
	})
	return err
}

// LatestRun returns the most recent run summary on record. The returned
// error carries the not-found category when no run has happened yet.
func LatestRun(ctx context.Context, s Store) (*Summary, error) {
	table := s.TableName(schema.TableMigrationRuns)
	if !s.TableExists(ctx, table) {
		return nil, noRunsError(table)
	}

	row, err := s.SelectOne(ctx,
		fmt.Sprintf("SELECT summary FROM `%s` ORDER BY id DESC LIMIT 1", table))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, noRunsError(table)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(store.AsString(row["summary"])), &summary); err != nil {
		return nil, errors.Newf("run record holds a malformed summary: %w", err).
			Component("migration").
			Category(errors.CategoryState).
			Build()
	}
	return &summary, nil
}

func noRunsError(table string) error {
	return errors.Newf("no migration runs recorded").
		Component("migration").
		Category(errors.CategoryNotFound).
		Context("table", table).
		Build()
}
