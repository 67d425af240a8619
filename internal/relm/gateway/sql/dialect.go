package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

// Dialect knows how to introspect one database flavour
type Dialect interface {
	Name() string
	TablesQuery() (string, []any)
	Columns(ctx context.Context, db *sql.DB, table string) ([]gateway.Column, error)
}

// SQLite introspects through sqlite_master and PRAGMA table_info
type SQLite struct{}

// Name implements Dialect
func (SQLite) Name() string { return "sqlite" }

// TablesQuery implements Dialect
func (SQLite) TablesQuery() (string, []any) {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`, nil
}

// Columns implements Dialect
func (SQLite) Columns(ctx context.Context, db *sql.DB, table string) ([]gateway.Column, error) {
	// PRAGMA does not accept bind parameters
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+pq.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []gateway.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull bool
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, gateway.Column{
			Name:       name,
			Type:       normalizeType(typ),
			PrimaryKey: pk > 0,
			Nullable:   !notNull && pk == 0,
		})
	}
	return cols, rows.Err()
}

// Postgres introspects information_schema within one schema
type Postgres struct {
	Schema string
}

// Name implements Dialect
func (Postgres) Name() string { return "postgres" }

// TablesQuery implements Dialect
func (p Postgres) TablesQuery() (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`,
		[]any{p.schema()}
}

// Columns implements Dialect
func (p Postgres) Columns(ctx context.Context, db *sql.DB, table string) ([]gateway.Column, error) {
	pkRows, err := db.QueryContext(ctx, `SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2`, p.schema(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	primary, err := scanNames(pkRows)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`, p.schema(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []gateway.Column
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		_, isPK := primary[name]
		cols = append(cols, gateway.Column{
			Name:       name,
			Type:       normalizeType(typ),
			PrimaryKey: isPK,
			Nullable:   nullable == "YES",
		})
	}
	return cols, rows.Err()
}

func (p Postgres) schema() string {
	if p.Schema == "" {
		return "public"
	}
	return p.Schema
}

// MySQL introspects information_schema of the connected database
type MySQL struct{}

// Name implements Dialect
func (MySQL) Name() string { return "mysql" }

// TablesQuery implements Dialect
func (MySQL) TablesQuery() (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`, nil
}

// Columns implements Dialect
func (MySQL) Columns(ctx context.Context, db *sql.DB, table string) ([]gateway.Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable, column_key
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []gateway.Column
	for rows.Next() {
		var name, typ, nullable, key string
		if err := rows.Scan(&name, &typ, &nullable, &key); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, gateway.Column{
			Name:       name,
			Type:       normalizeType(typ),
			PrimaryKey: key == "PRI",
			Nullable:   nullable == "YES",
		})
	}
	return cols, rows.Err()
}

func scanNames(rows *sql.Rows) (map[string]struct{}, error) {
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

// normalizeType maps driver type names onto a small shared vocabulary
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "int", "integer", "bigint", "smallint", "tinyint", "mediumint", "serial", "bigserial":
		return "integer"
	case "text", "varchar", "character varying", "char", "character", "string", "clob":
		return "string"
	case "real", "double", "double precision", "float", "numeric", "decimal":
		return "float"
	case "boolean", "bool":
		return "boolean"
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz", "datetime":
		return "time"
	case "date":
		return "date"
	case "uuid":
		return "uuid"
	case "json", "jsonb":
		return "json"
	case "blob", "bytea", "binary", "varbinary":
		return "bytes"
	case "":
		return "any"
	default:
		return t
	}
}
