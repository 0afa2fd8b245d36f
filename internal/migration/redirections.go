package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

// RedirectionsMigrator collects the per-site redirection option blobs into
// a transient aggregation table, deduplicates identical blobs across sites
// and writes one network redirection row per distinct blob, attributed to
// the lowest contributing site id.
//
// The aggregation table is dropped on every exit path. It exists only
// because the per-site options live in differently named tables, which
// rules out a single UNION over a fixed table list.
type RedirectionsMigrator struct {
	store  Store
	log    *slog.Logger
	dryRun bool
}

func NewRedirectionsMigrator(s Store, log *slog.Logger, dryRun bool) *RedirectionsMigrator {
	return &RedirectionsMigrator{store: s, log: log, dryRun: dryRun}
}

func (m *RedirectionsMigrator) Name() string { return "redirections" }

func (m *RedirectionsMigrator) Run(ctx context.Context) (*EntityReport, error) {
	report := NewEntityReport(m.Name())

	tmp := m.store.TableName(schema.TableRedirectUnion)
	cols := []store.ColumnDef{
		{Name: "site_id", Type: store.FieldType{Name: "bigint", Size: 20, Modifier: "unsigned"}, NotNull: true},
		{Name: "setting_value", Type: store.FieldType{Name: "varchar", Size: 255}, NotNull: true},
	}
	if err := m.store.CreateTable(ctx, tmp, cols, nil); err != nil {
		return report, err
	}
	defer func() {
		// Cleanup must run even when ctx was cancelled mid-sweep.
		dropCtx := context.WithoutCancel(ctx)
		if err := m.store.DropTable(dropCtx, tmp); err != nil {
			m.log.Error("failed to drop aggregation table", "table", tmp, "error", err)
		}
	}()

	sites, err := m.store.Sites(ctx)
	if err != nil {
		return report, err
	}

	for _, site := range sites {
		identity := fmt.Sprintf("site %d", site.ID)

		blob, found, err := m.store.SiteOption(ctx, site.ID, schema.OptionRedirect)
		if err != nil {
			if store.IsConnectionLost(err) {
				return report, err
			}
			report.Fail(identity, err)
			continue
		}
		if !found || strings.TrimSpace(blob) == "" {
			m.log.Debug("site has no redirection settings", "site", site.ID)
			continue
		}
		if _, err := jason.NewObjectFromBytes([]byte(blob)); err != nil {
			report.Fail(identity, errors.Newf("redirection option is not a JSON object: %w", errors.ErrInvalidValue).
				Component("migration").
				Context("entity", "redirections").
				SiteContext(site.ID).
				Build())
			continue
		}

		// Dry runs still stage rows here: the table is transient and the
		// cross-site grouping below is the only way to count accurately.
		if _, err := m.store.Insert(ctx, tmp, store.Row{
			"site_id":       site.ID,
			"setting_value": blob,
		}); err != nil {
			if store.IsConnectionLost(err) {
				return report, err
			}
			report.Fail(identity, err)
			continue
		}
	}

	grouped, err := m.store.Select(ctx, fmt.Sprintf(
		"SELECT MIN(site_id) AS site_id, setting_value FROM `%s` GROUP BY setting_value", tmp))
	if err != nil {
		return report, err
	}

	for _, row := range grouped {
		siteID := store.AsUint64(row["site_id"])
		outcome, err := m.migrateBlob(ctx, siteID, store.AsString(row["setting_value"]))
		if err := recordOutcome(m.log, report, fmt.Sprintf("site %d", siteID), outcome, err); err != nil {
			return report, err
		}
	}
	return report, nil
}

// migrateBlob writes one deduplicated redirection blob unless the owning
// site already has a redirect setting in the target table.
func (m *RedirectionsMigrator) migrateBlob(ctx context.Context, siteID uint64, blob string) (Outcome, error) {
	target := m.store.TableName(schema.TableRedirections)

	existing, err := m.store.SelectOne(ctx, fmt.Sprintf(
		"SELECT id FROM `%s` WHERE site_id = ? AND setting_key = ? LIMIT 1", target),
		siteID, schema.SettingKeyRedirect)
	if err != nil {
		return OutcomeFailed, err
	}
	if existing != nil {
		return OutcomeSkipped, nil
	}

	if m.dryRun {
		m.log.Info("dry run: would insert redirection settings", "site", siteID)
		return OutcomeMigrated, nil
	}

	if _, err := m.store.Insert(ctx, target, store.Row{
		"site_id":       siteID,
		"setting_key":   schema.SettingKeyRedirect,
		"setting_value": blob,
	}); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeMigrated, nil
}
