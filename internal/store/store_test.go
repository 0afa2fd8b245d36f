package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
)

// setupStore creates a file-backed SQLite store in a temp dir with the
// network tables and two sites provisioned. Returns the store and a cleanup
// function.
func setupStore(t *testing.T) (s *Store, cleanup func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err = NewFromDB(db, "ln_", "utf8mb4", "utf8mb4_unicode_520_ci", false, testLogger)
	require.NoError(t, err)

	require.NoError(t, schema.ProvisionNetwork(db, s.TableName))
	for _, siteID := range []uint64{1, 2} {
		require.NoError(t, schema.ProvisionSite(db, s.SiteTableName, siteID))
	}

	return s, func() { _ = s.Close() }
}

func TestStore_TableNaming(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	assert.Equal(t, "ln_modules", s.TableName(schema.TableModules))
	assert.Equal(t, "ln_options", s.SiteTableName(1, schema.TableOptions))
	assert.Equal(t, "ln_2_options", s.SiteTableName(2, schema.TableOptions))
	assert.Equal(t, "ln_17_translation_links", s.SiteTableName(17, schema.TableTranslationLinks))
}

func TestStore_Select_EmptyResultIsNotError(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	rows, err := s.Select(context.Background(), "SELECT * FROM `ln_modules`")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestStore_Select_PlaceholderMismatch_FailsBeforeDriver(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	_, err := s.Select(context.Background(), "SELECT * FROM `ln_modules` WHERE name = ?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueryPrepare))

	_, err = s.Select(context.Background(), "SELECT * FROM `ln_modules`", "stray")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueryPrepare))
}

func TestStore_Select_UnknownTable_FailsWithStoreError(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	_, err := s.Select(context.Background(), "SELECT * FROM `ln_no_such_table`")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStore))
}

func TestStore_Insert_ReturnsGeneratedKey(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	first, err := s.Insert(ctx, "ln_modules", Row{"name": "class-mlp_alpha_module", "status": "on"})
	require.NoError(t, err)
	assert.Positive(t, first)

	second, err := s.Insert(ctx, "ln_modules", Row{"name": "class-mlp_beta_module", "status": "off"})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	rows, err := s.Select(ctx, "SELECT name, status FROM `ln_modules` ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "class-mlp_alpha_module", AsString(rows[0]["name"]))
	assert.Equal(t, "off", AsString(rows[1]["status"]))
}

func TestStore_Insert_EmptyRecordFails(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	_, err := s.Insert(context.Background(), "ln_modules", Row{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueryPrepare))
}

func TestStore_Update_ReportsAffectedRows(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	_, err := s.Insert(ctx, "ln_modules", Row{"name": "alpha", "status": "on"})
	require.NoError(t, err)

	affected, err := s.Update(ctx, "ln_modules", Row{"status": "off"}, Row{"name": "alpha"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = s.Update(ctx, "ln_modules", Row{"status": "off"}, Row{"name": "missing"})
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestStore_NetworkOption_RoundTrip(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()

	_, found, err := s.NetworkOption(ctx, schema.OptionModules)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetNetworkOption(ctx, schema.OptionModules, `{"alpha":true}`))

	value, found, err := s.NetworkOption(ctx, schema.OptionModules)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"alpha":true}`, value)

	// Writing the stored value is a no-op, a changed value is an update.
	require.NoError(t, s.SetNetworkOption(ctx, schema.OptionModules, `{"alpha":true}`))
	require.NoError(t, s.SetNetworkOption(ctx, schema.OptionModules, `{"alpha":false}`))

	value, _, err = s.NetworkOption(ctx, schema.OptionModules)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":false}`, value)
}

func TestStore_SiteOption_ReadsTheSitesOwnTable(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	_, err := s.Insert(ctx, "ln_options", Row{"option_name": schema.OptionRedirect, "option_value": `{"to":"/a"}`})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "ln_2_options", Row{"option_name": schema.OptionRedirect, "option_value": `{"to":"/b"}`})
	require.NoError(t, err)

	v1, found, err := s.SiteOption(ctx, 1, schema.OptionRedirect)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"to":"/a"}`, v1)

	v2, found, err := s.SiteOption(ctx, 2, schema.OptionRedirect)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"to":"/b"}`, v2)
}

func TestStore_Sites_OrderedByID(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	for _, site := range []Row{
		{"id": 2, "domain": "example.org", "path": "/"},
		{"id": 1, "domain": "example.com", "path": "/"},
	} {
		_, err := s.Insert(ctx, "ln_sites", site)
		require.NoError(t, err)
	}

	sites, err := s.Sites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, uint64(1), sites[0].ID)
	assert.Equal(t, "example.com", sites[0].Domain)
	assert.Equal(t, uint64(2), sites[1].ID)
}

func TestStore_TableExists(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	assert.True(t, s.TableExists(ctx, "ln_modules"))
	assert.False(t, s.TableExists(ctx, "ln_3_translation_links"))
}

func TestStore_Ping(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, s.Ping(context.Background()))
}
