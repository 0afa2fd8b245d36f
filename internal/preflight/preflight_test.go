package preflight

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

	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/schema"
	"github.com/linguanet/linguanet-go/internal/store"
)

func setupChecker(t *testing.T) (c *Checker, s *store.Store, cleanup func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "preflight.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err = store.NewFromDB(db, "ln_", "utf8mb4", "utf8mb4_unicode_520_ci", false, log)
	require.NoError(t, err)
	require.NoError(t, schema.ProvisionNetwork(db, s.TableName))

	settings := &conf.Settings{}
	settings.Store.Type = "sqlite"
	settings.Store.TablePrefix = "ln_"
	settings.Store.SQLite.Path = dbPath

	return New(s, settings, log), s, func() { _ = s.Close() }
}

func findCheck(t *testing.T, result *Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %q not found in result", id)
	return Check{}
}

func TestChecker_Run_ProvisionedStoreCanMigrate(t *testing.T) {
	c, _, cleanup := setupChecker(t)
	defer cleanup()

	result := c.Run(context.Background())
	assert.True(t, result.CanMigrate)
	assert.Equal(t, 0, result.CriticalFailures)
	assert.False(t, result.CheckedAt.IsZero())

	assert.Equal(t, CheckStatusPassed, findCheck(t, result, "store_reachable").Status)
	assert.Equal(t, CheckStatusPassed, findCheck(t, result, "legacy_table_modules").Status)
	assert.Equal(t, CheckStatusPassed, findCheck(t, result, "target_table_languages").Status)
	assert.Equal(t, CheckStatusPassed, findCheck(t, result, "check_mode").Status)
}

func TestChecker_Run_MissingLegacyTableIsCritical(t *testing.T) {
	c, s, cleanup := setupChecker(t)
	defer cleanup()

	require.NoError(t, s.DropTable(context.Background(), s.TableName(schema.TableModules)))

	result := c.Run(context.Background())
	assert.False(t, result.CanMigrate)
	assert.GreaterOrEqual(t, result.CriticalFailures, 1)

	check := findCheck(t, result, "legacy_table_modules")
	assert.Equal(t, CheckStatusFailed, check.Status)
	assert.Contains(t, check.Message, "ln_modules")
}

func TestChecker_Run_MissingTargetTableIsCritical(t *testing.T) {
	c, s, cleanup := setupChecker(t)
	defer cleanup()

	require.NoError(t, s.DropTable(context.Background(), s.TableName(schema.TableLanguages)))

	result := c.Run(context.Background())
	assert.False(t, result.CanMigrate)
	assert.Equal(t, CheckStatusFailed, findCheck(t, result, "target_table_languages").Status)
}

func TestChecker_Run_CheckModeOptionWarnsWithoutBlocking(t *testing.T) {
	c, s, cleanup := setupChecker(t)
	defer cleanup()

	require.NoError(t, s.SetNetworkOption(context.Background(), schema.OptionCheckMode, "1"))

	result := c.Run(context.Background())
	assert.True(t, result.CanMigrate, "check mode must not block a run")
	assert.GreaterOrEqual(t, result.Warnings, 1)

	check := findCheck(t, result, "check_mode")
	assert.Equal(t, CheckStatusWarning, check.Status)
	assert.Contains(t, check.Message, "dry run")
}

func TestChecker_Run_DiskCheckSkippedForMySQL(t *testing.T) {
	c, _, cleanup := setupChecker(t)
	defer cleanup()
	c.settings.Store.Type = "mysql"

	result := c.Run(context.Background())
	assert.Equal(t, CheckStatusSkipped, findCheck(t, result, "disk_space").Status)
}

func TestDatabaseDirectory(t *testing.T) {
	assert.Equal(t, ".", databaseDirectory(""))

	dir := t.TempDir()
	assert.Equal(t, dir, databaseDirectory(filepath.Join(dir, "data.db")))

	assert.Equal(t, ".", databaseDirectory(filepath.Join(dir, "missing", "deeper", "data.db")))
}
