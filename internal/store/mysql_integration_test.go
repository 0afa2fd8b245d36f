package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguanet/linguanet-go/internal/schema"
)

// setupMySQLStore starts a disposable MySQL server and returns a store bound
// to it. Requires a container runtime; skipped in short mode.
func setupMySQLStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}

	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("linguanet"),
		tcmysql.WithUsername("linguanet"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4")
	require.NoError(t, err)

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewFromDB(db, "ln_", "utf8mb4", "utf8mb4_unicode_520_ci", true, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, schema.ProvisionNetwork(db, s.TableName))
	require.NoError(t, schema.ProvisionSite(db, s.SiteTableName, 1))

	return s
}

func TestMySQL_CreateTableAndInsert(t *testing.T) {
	s := setupMySQLStore(t)

	ctx := context.Background()
	cols := []ColumnDef{
		{Name: "id", Type: FieldType{Name: "bigint", Size: 20, Modifier: "unsigned"}, NotNull: true, AutoIncrement: true},
		{Name: "site_id", Type: FieldType{Name: "bigint", Size: 20, Modifier: "unsigned"}, NotNull: true},
		{Name: "setting_value", Type: FieldType{Name: "varchar", Size: 255}, NotNull: true},
	}
	require.NoError(t, s.CreateTable(ctx, "ln_mysql_probe", cols, []string{"id"}))
	// Idempotent re-create against a real server.
	require.NoError(t, s.CreateTable(ctx, "ln_mysql_probe", cols, []string{"id"}))

	id, err := s.Insert(ctx, "ln_mysql_probe", Row{"site_id": 1, "setting_value": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	rows, err := s.Select(ctx, "SELECT site_id, setting_value FROM `ln_mysql_probe` WHERE id = ?", id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), AsUint64(rows[0]["site_id"]))
	assert.Equal(t, "x", AsString(rows[0]["setting_value"]))
}

func TestMySQL_OptionsAndGrouping(t *testing.T) {
	s := setupMySQLStore(t)

	ctx := context.Background()
	require.NoError(t, s.SetNetworkOption(ctx, schema.OptionModules, `{"alpha":true}`))
	value, found, err := s.NetworkOption(ctx, schema.OptionModules)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"alpha":true}`, value)

	// Aggregation-table shape: values copied from per-site tables must
	// group on the server using the store's charset and collation.
	cols := []ColumnDef{
		{Name: "site_id", Type: FieldType{Name: "bigint", Size: 20, Modifier: "unsigned"}, NotNull: true},
		{Name: "setting_value", Type: FieldType{Name: "varchar", Size: 255}, NotNull: true},
	}
	require.NoError(t, s.CreateTable(ctx, "ln_tmp_probe", cols, nil))
	defer func() { require.NoError(t, s.DropTable(ctx, "ln_tmp_probe")) }()

	for _, r := range []Row{
		{"site_id": 1, "setting_value": "foo"},
		{"site_id": 2, "setting_value": "foo"},
		{"site_id": 3, "setting_value": "bar"},
	} {
		_, err := s.Insert(ctx, "ln_tmp_probe", r)
		require.NoError(t, err)
	}

	rows, err := s.Select(ctx, "SELECT MIN(site_id) AS site_id, setting_value FROM `ln_tmp_probe` GROUP BY setting_value ORDER BY site_id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(1), AsUint64(rows[0]["site_id"]))
	assert.Equal(t, "foo", AsString(rows[0]["setting_value"]))
	assert.Equal(t, uint64(3), AsUint64(rows[1]["site_id"]))
}
