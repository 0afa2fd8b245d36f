package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

func TestRelationships_Run_CopiesLinksFromAllSites(t *testing.T) {
	s, cleanup := setupFixture(t, 2)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)
	seedLink(t, s, 1, 1, 12, 2, 22)
	seedLink(t, s, 2, 2, 21, 1, 11)

	m := NewRelationshipsMigrator(s, testLogger(), false)
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Migrated)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, rowCount(t, s, s.TableName(schema.TableContentRelations)))
}

func TestRelationships_Run_SecondRunSkips(t *testing.T) {
	s, cleanup := setupFixture(t, 2)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)
	seedLink(t, s, 2, 2, 21, 1, 11)

	m := NewRelationshipsMigrator(s, testLogger(), false)
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	report, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Migrated)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, rowCount(t, s, s.TableName(schema.TableContentRelations)))
}

func TestRelationships_Run_DuplicateLegacyTupleSkipsSecond(t *testing.T) {
	s, cleanup := setupFixture(t, 1)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)
	seedLink(t, s, 1, 1, 11, 2, 21)

	m := NewRelationshipsMigrator(s, testLogger(), false)
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, rowCount(t, s, s.TableName(schema.TableContentRelations)))
}

func TestRelationships_Run_SiteWithoutLinksTableContributesNothing(t *testing.T) {
	s, cleanup := setupFixture(t, 2)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)
	require.NoError(t, s.DropTable(context.Background(), s.SiteTableName(2, schema.TableTranslationLinks)))

	m := NewRelationshipsMigrator(s, testLogger(), false)
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 0, report.Failed, "a missing per-site table is not an error")
}

func TestRelationships_Migrate_ZeroIDFails(t *testing.T) {
	s, cleanup := setupFixture(t, 1)
	defer cleanup()

	m := NewRelationshipsMigrator(s, testLogger(), false)
	outcome, err := m.Migrate(context.Background(), schema.ContentRelation{
		SourceSiteID:    1,
		SourceContentID: 0,
		TargetSiteID:    2,
		TargetContentID: 21,
	})
	assert.Equal(t, OutcomeFailed, outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidValue))
	assert.Equal(t, 0, rowCount(t, s, s.TableName(schema.TableContentRelations)))
}

func TestRelationships_DryRun_CountsWithoutWriting(t *testing.T) {
	s, cleanup := setupFixture(t, 1)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)

	m := NewRelationshipsMigrator(s, testLogger(), true)
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 0, rowCount(t, s, s.TableName(schema.TableContentRelations)))
}

func TestRelationships_Run_SurrogateColumnsNotCarried(t *testing.T) {
	s, cleanup := setupFixture(t, 1)
	defer cleanup()

	seedLink(t, s, 1, 1, 11, 2, 21)

	m := NewRelationshipsMigrator(s, testLogger(), false)
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	row, err := s.SelectOne(context.Background(),
		"SELECT source_site_id, source_content_id, target_site_id, target_content_id FROM `ln_content_relations` LIMIT 1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, uint64(1), store.AsUint64(row["source_site_id"]))
	assert.Equal(t, uint64(11), store.AsUint64(row["source_content_id"]))
	assert.Equal(t, uint64(2), store.AsUint64(row["target_site_id"]))
	assert.Equal(t, uint64(21), store.AsUint64(row["target_content_id"]))
}
