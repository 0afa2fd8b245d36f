package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

// RelationshipsMigrator copies the per-site translation link tables into
// the network-wide content relations table. The legacy surrogate link id
// and the constant type column are not carried over; identity in v3 is the
// (source site, source content, target site, target content) tuple.
type RelationshipsMigrator struct {
	store  Store
	log    *slog.Logger
	dryRun bool
}

func NewRelationshipsMigrator(s Store, log *slog.Logger, dryRun bool) *RelationshipsMigrator {
	return &RelationshipsMigrator{store: s, log: log, dryRun: dryRun}
}

func (m *RelationshipsMigrator) Name() string { return "relationships" }

func (m *RelationshipsMigrator) Run(ctx context.Context) (*EntityReport, error) {
	report := NewEntityReport(m.Name())

	sites, err := m.store.Sites(ctx)
	if err != nil {
		return report, err
	}

	for _, site := range sites {
		table := m.store.SiteTableName(site.ID, schema.TableTranslationLinks)
		if !m.store.TableExists(ctx, table) {
			// Sites created after the plugin was deactivated never got the
			// table; they simply have no links to migrate.
			m.log.Debug("site has no translation links table", "site", site.ID, "table", table)
			continue
		}

		rows, err := m.store.Select(ctx, fmt.Sprintf(
			"SELECT ml_source_siteid, ml_source_contentid, ml_siteid, ml_contentid FROM `%s` ORDER BY link_id", table))
		if err != nil {
			if store.IsConnectionLost(err) {
				return report, err
			}
			report.Fail(fmt.Sprintf("site %d", site.ID), err)
			continue
		}

		for _, row := range rows {
			rel := schema.ContentRelation{
				SourceSiteID:    store.AsUint64(row["ml_source_siteid"]),
				SourceContentID: store.AsUint64(row["ml_source_contentid"]),
				TargetSiteID:    store.AsUint64(row["ml_siteid"]),
				TargetContentID: store.AsUint64(row["ml_contentid"]),
			}
			identity := fmt.Sprintf("site %d link %d->%d", site.ID, rel.SourceContentID, rel.TargetContentID)
			outcome, err := m.Migrate(ctx, rel)
			if err := recordOutcome(m.log, report, identity, outcome, err); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// Migrate inserts one content relation unless the same tuple already
// exists in the target table.
func (m *RelationshipsMigrator) Migrate(ctx context.Context, rel schema.ContentRelation) (Outcome, error) {
	if rel.SourceSiteID == 0 || rel.SourceContentID == 0 || rel.TargetSiteID == 0 || rel.TargetContentID == 0 {
		return OutcomeFailed, errors.Newf("translation link references site or content id 0: %w", errors.ErrInvalidValue).
			Component("migration").
			Context("entity", "relationships").
			Build()
	}

	target := m.store.TableName(schema.TableContentRelations)
	existing, err := m.store.SelectOne(ctx, fmt.Sprintf(
		"SELECT id FROM `%s` WHERE source_site_id = ? AND source_content_id = ? AND target_site_id = ? AND target_content_id = ? LIMIT 1",
		target),
		rel.SourceSiteID, rel.SourceContentID, rel.TargetSiteID, rel.TargetContentID)
	if err != nil {
		return OutcomeFailed, err
	}
	if existing != nil {
		return OutcomeSkipped, nil
	}

	if m.dryRun {
		m.log.Info("dry run: would insert content relation",
			"source_site", rel.SourceSiteID, "source_content", rel.SourceContentID,
			"target_site", rel.TargetSiteID, "target_content", rel.TargetContentID)
		return OutcomeMigrated, nil
	}

	if _, err := m.store.Insert(ctx, target, store.Row{
		"source_site_id":    rel.SourceSiteID,
		"source_content_id": rel.SourceContentID,
		"target_site_id":    rel.TargetSiteID,
		"target_content_id": rel.TargetContentID,
	}); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeMigrated, nil
}
