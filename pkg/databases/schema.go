// Package databases reads schema and rows from the relational database the
// SQL tools and SQL ingestion work against.
package databases

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Dialects understood by this package. They match config.DatabaseConfig's
// Dialect().
const (
	DialectSQLServer = "sqlserver"
	DialectPostgres  = "postgres"
	DialectMySQL     = "mysql"
	DialectSQLite    = "sqlite"
)

// Column is one table column.
type Column struct {
	Name string
	Type string
}

// Table is a base table and its columns in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

// Tables lists the base tables of the current database with their columns,
// sorted by table name.
func Tables(ctx context.Context, db *sql.DB, dialect string) ([]Table, error) {
	if dialect == DialectSQLite {
		return sqliteTables(ctx, db)
	}

	query, err := columnsQuery(dialect)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*Table)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		t, ok := byName[table]
		if !ok {
			t = &Table{Name: table}
			byName[table] = t
		}
		t.Columns = append(t.Columns, Column{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	return sortedTables(byName), nil
}

func columnsQuery(dialect string) (string, error) {
	const base = `SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS c
JOIN INFORMATION_SCHEMA.TABLES t
  ON t.TABLE_NAME = c.TABLE_NAME AND t.TABLE_SCHEMA = c.TABLE_SCHEMA
WHERE t.TABLE_TYPE = 'BASE TABLE'`

	switch dialect {
	case DialectSQLServer:
		return base + ` AND t.TABLE_CATALOG = DB_NAME()
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`, nil
	case DialectPostgres:
		return base + ` AND c.TABLE_SCHEMA = current_schema()
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`, nil
	case DialectMySQL:
		return base + ` AND c.TABLE_SCHEMA = DATABASE()
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func sqliteTables(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func sortedTables(byName map[string]*Table) []Table {
	tables := make([]Table, 0, len(byName))
	for _, t := range byName {
		tables = append(tables, *t)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name < tables[j].Name
	})
	return tables
}

// Find returns the table whose name matches name case-insensitively.
func Find(tables []Table, name string) (Table, bool) {
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Names returns the table names.
func Names(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// String renders the table as "Name(col type, ...)".
func (t Table) String() string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if c.Type == "" {
			parts[i] = c.Name
		} else {
			parts[i] = c.Name + " " + strings.ToLower(c.Type)
		}
	}
	return t.Name + "(" + strings.Join(parts, ", ") + ")"
}

// QuoteIdent quotes a table or column name for dialect.
func QuoteIdent(dialect, name string) string {
	switch dialect {
	case DialectSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// SelectAll builds a SELECT * for table with an optional row limit.
func SelectAll(dialect, table string, limit int) string {
	q := QuoteIdent(dialect, table)
	if limit <= 0 {
		return "SELECT * FROM " + q
	}
	if dialect == DialectSQLServer {
		return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, q)
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", q, limit)
}
