package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FieldType is the storage shape of one column.
type FieldType struct {
	Name     string // base SQL type, compared case-insensitively
	Size     int    // optional display size or length, 0 when absent
	Modifier string // optional modifier such as "unsigned"
}

// DefaultValue is a typed column default. A nil Value renders as DEFAULT
// NULL; booleans and numbers render unquoted; everything else is quoted.
type DefaultValue struct {
	Value any
}

// ColumnDef describes one column of a CreateTable call. Fields are explicit
// rather than packed into a shorthand string; ParseColumnType builds a
// ColumnDef from the legacy shorthand where that is still convenient.
type ColumnDef struct {
	Name          string
	Type          FieldType
	NotNull       bool
	AutoIncrement bool
	Default       *DefaultValue
}

// shorthandRe matches "type", "type(size)", "type(size) modifier".
var shorthandRe = regexp.MustCompile(`^([a-zA-Z]+)(?:\((\d+)\))?(?:\s+(\w+))?$`)

// ParseColumnType builds a ColumnDef from the shorthand type form used by
// older schema descriptors, e.g. "bigint(20) unsigned" or "varchar(255)".
func ParseColumnType(name, shorthand string) (ColumnDef, error) {
	def := ColumnDef{Name: name}

	m := shorthandRe.FindStringSubmatch(strings.TrimSpace(shorthand))
	if m == nil {
		return def, schemaError("unparseable column type", "column", name, "type", shorthand)
	}

	def.Type.Name = strings.ToLower(m[1])
	if m[2] != "" {
		size, err := strconv.Atoi(m[2])
		if err != nil {
			return def, schemaError("unparseable column size", "column", name, "type", shorthand)
		}
		def.Type.Size = size
	}
	def.Type.Modifier = strings.ToLower(m[3])

	return def, nil
}

// CreateTable validates the descriptor, renders CREATE TABLE DDL for the
// store's dialect and applies it through AlterOrCreate, so re-creating an
// existing table quietly succeeds.
func (s *Store) CreateTable(ctx context.Context, name string, cols []ColumnDef, primaryKeys []string) error {
	ddl, err := s.renderCreateTable(name, cols, primaryKeys)
	if err != nil {
		return err
	}
	return s.AlterOrCreate(ctx, ddl)
}

func (s *Store) renderCreateTable(name string, cols []ColumnDef, primaryKeys []string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", schemaError("table name must not be empty")
	}
	if len(cols) == 0 {
		return "", schemaError("table needs at least one column", "table", name)
	}

	defined := make(map[string]bool, len(cols))
	for _, col := range cols {
		if strings.TrimSpace(col.Name) == "" {
			return "", schemaError("column name must not be empty", "table", name)
		}
		if strings.TrimSpace(col.Type.Name) == "" {
			return "", schemaError("column type must not be empty", "table", name, "column", col.Name)
		}
		defined[col.Name] = true
	}
	for _, pk := range primaryKeys {
		if !defined[pk] {
			return "", schemaError("primary key references undeclared column", "table", name, "column", pk)
		}
	}
	for _, col := range cols {
		if col.AutoIncrement && !inKeys(col.Name, primaryKeys) {
			return "", schemaError("auto increment column must be a primary key", "table", name, "column", col.Name)
		}
	}

	// SQLite expresses a single auto-increment key inline and rejects the
	// MySQL AUTO_INCREMENT keyword.
	inlinePK := ""
	if !s.isMySQL && len(primaryKeys) == 1 {
		for _, col := range cols {
			if col.AutoIncrement && col.Name == primaryKeys[0] {
				inlinePK = col.Name
			}
		}
	}

	parts := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		if col.Name == inlinePK {
			parts = append(parts, quoteIdent(col.Name)+" INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}
		parts = append(parts, s.renderColumn(col))
	}
	if len(primaryKeys) > 0 && inlinePK == "" {
		quoted := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quoted[i] = quoteIdent(pk)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n  %s\n)", quoteIdent(name), strings.Join(parts, ",\n  "))
	if s.isMySQL && s.charset != "" {
		fmt.Fprintf(&b, " DEFAULT CHARACTER SET %s", s.charset)
		if s.collation != "" {
			fmt.Fprintf(&b, " COLLATE %s", s.collation)
		}
	}
	return b.String(), nil
}

func inKeys(name string, keys []string) bool {
	for _, k := range keys {
		if k == name {
			return true
		}
	}
	return false
}

func (s *Store) renderColumn(col ColumnDef) string {
	var b strings.Builder
	b.WriteString(quoteIdent(col.Name))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(col.Type.Name))
	if col.Type.Size > 0 {
		fmt.Fprintf(&b, "(%d)", col.Type.Size)
	}
	if col.Type.Modifier != "" {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(col.Type.Modifier))
	}
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(renderDefault(col.Default.Value))
	}
	if col.AutoIncrement && s.isMySQL {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

func renderDefault(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}

// alreadyExistsMarkers are benign DDL-collision responses. dbDelta-style
// schema application treats them as success.
var alreadyExistsMarkers = []string{
	"already exists",
	"duplicate column",
	"errno 1050",
	"error 1050",
	"error 1060",
}

// AlterOrCreate applies a DDL statement idempotently: CREATE TABLE gains IF
// NOT EXISTS and already-applied statements succeed quietly.
func (s *Store) AlterOrCreate(ctx context.Context, ddl string) error {
	if err := s.throttle(ctx); err != nil {
		return err
	}

	stmt := injectIfNotExists(ddl)
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		msg := strings.ToLower(err.Error())
		for _, marker := range alreadyExistsMarkers {
			if strings.Contains(msg, marker) {
				return nil
			}
		}
		return storeError(err, "alter_or_create", "ddl", firstLine(stmt))
	}
	return nil
}

func injectIfNotExists(ddl string) string {
	trimmed := strings.TrimSpace(ddl)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "CREATE TABLE ") && !strings.HasPrefix(upper, "CREATE TABLE IF NOT EXISTS") {
		return "CREATE TABLE IF NOT EXISTS " + trimmed[len("CREATE TABLE "):]
	}
	return trimmed
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// DropTable removes a table if it exists. Guaranteed-cleanup paths rely on
// this never failing just because the table is already gone.
func (s *Store) DropTable(ctx context.Context, name string) error {
	if err := s.throttle(ctx); err != nil {
		return err
	}
	stmt := "DROP TABLE IF EXISTS " + quoteIdent(name)
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return storeError(err, "drop_table", "table", name)
	}
	return nil
}
