// Package store implements the relational access layer shared by the legacy
// and target schemas. One Store wraps one database handle; every table it
// touches carries the installation's table prefix, and per-site tables follow
// the multisite numbering convention.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/time/rate"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguanet/linguanet-go/internal/conf"
	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/schema"
)

// Row is a single result record keyed by column name. Values carry whatever
// type the driver produced; the As* helpers in conv.go normalize them.
type Row map[string]any

// Site is one entry of the installation's site registry.
type Site struct {
	ID     uint64
	Domain string
	Path   string
}

// Store is the shared relational access layer. It is safe for use from a
// single goroutine, matching the strictly sequential migration core.
type Store struct {
	db        *gorm.DB
	sqlDB     *sql.DB
	prefix    string
	charset   string
	collation string
	isMySQL   bool
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Open connects to the configured store and returns a ready Store.
// The connection pool is kept deliberately small: the migration core is
// single-threaded and SQLite tolerates one writer.
func Open(settings *conf.Settings, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector

	switch settings.Store.Type {
	case "mysql":
		// mysql.Config handles credential escaping in the DSN.
		cfg := mysql.NewConfig()
		cfg.User = settings.Store.MySQL.Username
		cfg.Passwd = settings.Store.MySQL.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", settings.Store.MySQL.Host, settings.Store.MySQL.Port)
		cfg.DBName = settings.Store.MySQL.Database
		cfg.ParseTime = true
		cfg.Loc = time.Local
		cfg.Params = map[string]string{"charset": settings.Store.Charset}
		dialector = gormmysql.Open(cfg.FormatDSN())
	case "sqlite":
		dsn := settings.Store.SQLite.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
		dialector = sqlite.Open(dsn)
	default:
		return nil, schemaError("unsupported store type", "store_type", settings.Store.Type)
	}

	logLevel := logger.Silent
	if settings.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, storeError(err, "open")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storeError(err, "pool")
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:        db,
		sqlDB:     sqlDB,
		prefix:    settings.Store.TablePrefix,
		charset:   settings.Store.Charset,
		collation: settings.Store.Collation,
		isMySQL:   settings.Store.Type == "mysql",
		logger:    log,
	}
	if settings.Migration.Throttle > 0 {
		s.SetWriteLimit(settings.Migration.Throttle)
	}
	return s, nil
}

// NewFromDB wraps an already opened GORM handle. Used by tests and by
// callers that manage the connection themselves.
func NewFromDB(db *gorm.DB, prefix, charset, collation string, isMySQL bool, log *slog.Logger) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, storeError(err, "pool")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:        db,
		sqlDB:     sqlDB,
		prefix:    prefix,
		charset:   charset,
		collation: collation,
		isMySQL:   isMySQL,
		logger:    log,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.sqlDB == nil {
		return nil
	}
	if err := s.sqlDB.Close(); err != nil {
		return storeError(err, "close")
	}
	return nil
}

// DB exposes the GORM handle for schema probing and test fixtures.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// IsMySQL reports whether the store dialect is MySQL.
func (s *Store) IsMySQL() bool {
	return s.isMySQL
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return storeError(err, "ping")
	}
	return nil
}

// SetWriteLimit throttles Insert/Update/DDL execution to at most perSecond
// writes per second. Zero removes the limit.
func (s *Store) SetWriteLimit(perSecond int) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (s *Store) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return storeError(err, "throttle")
	}
	return nil
}

// TableName returns the physical name of a network-wide table.
func (s *Store) TableName(logical string) string {
	return s.prefix + logical
}

// SiteTableName returns the physical name of a per-site table. The first
// site of an installation uses unnumbered names.
func (s *Store) SiteTableName(siteID uint64, logical string) string {
	if siteID <= 1 {
		return s.prefix + logical
	}
	return fmt.Sprintf("%s%d_%s", s.prefix, siteID, logical)
}

// TableExists reports whether the named table is present.
func (s *Store) TableExists(ctx context.Context, name string) bool {
	return s.db.WithContext(ctx).Migrator().HasTable(name)
}

// countPlaceholders returns the number of '?' markers in a query.
func countPlaceholders(query string) int {
	return strings.Count(query, "?")
}

// Select runs a parameterized read and returns every matched row. A
// placeholder/argument count mismatch fails before the statement reaches the
// driver. An empty result is ([]Row{}, nil): emptiness alone is never an
// error signal.
func (s *Store) Select(ctx context.Context, query string, args ...any) ([]Row, error) {
	if want, got := countPlaceholders(query), len(args); want != got {
		return nil, prepareError(query, want, got)
	}

	// GORM scans maps only into the concrete []map[string]interface{} type.
	var raw []map[string]any
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&raw).Error; err != nil {
		return nil, storeError(err, "select", "query", query)
	}

	rows := make([]Row, len(raw))
	for i, m := range raw {
		rows[i] = Row(m)
	}
	return rows, nil
}

// SelectOne runs Select and returns the first row, or (nil, nil) when
// nothing matched.
func (s *Store) SelectOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.Select(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert writes one record and returns the generated numeric key, or zero
// when the table has none. Column order is deterministic so identical
// records produce identical statements.
func (s *Store) Insert(ctx context.Context, table string, rec Row) (int64, error) {
	if len(rec) == 0 {
		return 0, prepareError("INSERT INTO "+table, 1, 0)
	}
	if err := s.throttle(ctx); err != nil {
		return 0, err
	}

	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	vals := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		marks[i] = "?"
		vals[i] = rec[col]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	res, err := s.sqlDB.ExecContext(ctx, stmt, vals...)
	if err != nil {
		return 0, storeError(err, "insert", "table", table)
	}

	id, err := res.LastInsertId()
	if err != nil {
		// Driver cannot report generated keys for this table.
		return 0, nil
	}
	return id, nil
}

// Update writes the set columns on every row matching the where columns and
// returns the number of affected rows.
func (s *Store) Update(ctx context.Context, table string, set, where Row) (int64, error) {
	if len(set) == 0 || len(where) == 0 {
		return 0, prepareError("UPDATE "+table, 2, len(set)+len(where))
	}
	if err := s.throttle(ctx); err != nil {
		return 0, err
	}

	setCols := sortedColumns(set)
	whereCols := sortedColumns(where)

	assignments := make([]string, len(setCols))
	vals := make([]any, 0, len(setCols)+len(whereCols))
	for i, col := range setCols {
		assignments[i] = quoteIdent(col) + " = ?"
		vals = append(vals, set[col])
	}
	conditions := make([]string, len(whereCols))
	for i, col := range whereCols {
		conditions[i] = quoteIdent(col) + " = ?"
		vals = append(vals, where[col])
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(table), strings.Join(assignments, ", "), strings.Join(conditions, " AND "))

	res, err := s.sqlDB.ExecContext(ctx, stmt, vals...)
	if err != nil {
		return 0, storeError(err, "update", "table", table)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func sortedColumns(rec Row) []string {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// quoteIdent backtick-quotes an identifier. Both supported dialects accept
// backticks.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Sites returns the installation's site registry ordered by id.
func (s *Store) Sites(ctx context.Context) ([]Site, error) {
	query := fmt.Sprintf("SELECT id, domain, path FROM %s ORDER BY id", quoteIdent(s.TableName(schema.TableSites)))
	rows, err := s.Select(ctx, query)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, Site{
			ID:     AsUint64(row["id"]),
			Domain: AsString(row["domain"]),
			Path:   AsString(row["path"]),
		})
	}
	return sites, nil
}

// NetworkOption reads a network-wide option. The second return reports
// whether the option exists.
func (s *Store) NetworkOption(ctx context.Context, name string) (string, bool, error) {
	return s.option(ctx, s.TableName(schema.TableNetworkOptions), name)
}

// SiteOption reads a per-site option from the site's options table.
func (s *Store) SiteOption(ctx context.Context, siteID uint64, name string) (string, bool, error) {
	return s.option(ctx, s.SiteTableName(siteID, schema.TableOptions), name)
}

func (s *Store) option(ctx context.Context, table, name string) (string, bool, error) {
	query := fmt.Sprintf("SELECT option_value FROM %s WHERE option_name = ? LIMIT 1", quoteIdent(table))
	row, err := s.SelectOne(ctx, query, name)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, nil
	}
	return AsString(row["option_value"]), true, nil
}

// SetNetworkOption writes a network-wide option, inserting it when absent.
// Writing the already stored value is a no-op. A changed value the store
// reports as unapplied is a persist failure.
func (s *Store) SetNetworkOption(ctx context.Context, name, value string) error {
	table := s.TableName(schema.TableNetworkOptions)

	current, found, err := s.option(ctx, table, name)
	if err != nil {
		return err
	}

	if !found {
		if _, err := s.Insert(ctx, table, Row{"option_name": name, "option_value": value}); err != nil {
			return err
		}
		return nil
	}

	if current == value {
		return nil
	}

	affected, err := s.Update(ctx, table, Row{"option_value": value}, Row{"option_name": name})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistError("set_network_option", table, "option", name)
	}
	return nil
}
