// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/alanlin8901/special-happiness/pkg/databases"
	"github.com/alanlin8901/special-happiness/pkg/sqlguard"
)

// SQLOptions configures the SQL tools.
type SQLOptions struct {
	Dialect string

	// MaxRows caps the rows rendered into one observation.
	MaxRows int

	// MaxCellLen truncates long values, in runes.
	MaxCellLen int
}

// NewSQLSchemaTool describes the database. An empty input lists every base
// table with its columns; otherwise the input names one table.
func NewSQLSchemaTool(name, description string, db *sql.DB, opts SQLOptions) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Invoke: func(ctx context.Context, input string) string {
			tables, err := databases.Tables(ctx, db, opts.Dialect)
			if err != nil {
				return fmt.Sprintf("%s %v", PrefixSchemaError, err)
			}
			if len(tables) == 0 {
				return PrefixSchemaError + " the database has no tables"
			}

			want := strings.Trim(strings.TrimSpace(input), "`'\"[]")
			if want != "" && !strings.EqualFold(want, "all") && want != "*" {
				t, ok := databases.Find(tables, want)
				if !ok {
					return fmt.Sprintf("%s table %q not found. Tables: %s",
						PrefixSchemaError, want, strings.Join(databases.Names(tables), ", "))
				}
				return "Table: " + t.String()
			}

			lines := make([]string, len(tables))
			for i, t := range tables {
				lines[i] = "Table: " + t.String()
			}
			return strings.Join(lines, "\n")
		},
	}
}

// NewSQLQueryTool executes one statement extracted from its input.
//
// The guard only bounds the input to a single statement with a known verb.
// INSERT, UPDATE and DELETE are executed as written: model output can change
// data. Point the tool at a read-only login when that is not acceptable.
func NewSQLQueryTool(name, description string, db *sql.DB, opts SQLOptions) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Invoke: func(ctx context.Context, input string) string {
			stmt := sqlguard.Extract(input)
			if stmt == "" {
				return PrefixSQLError + " no SQL statement found in input; send one statement starting with SELECT, WITH, INSERT, UPDATE, DELETE or EXEC"
			}

			// Drivers reject the trailing separator in some dialects.
			query := strings.TrimSuffix(stmt, ";")

			if sqlguard.Mutates(stmt) {
				slog.Warn("Executing data-modifying SQL from model output", "verb", sqlguard.Verb(stmt), "statement", Truncate(stmt, 200))
				res, err := db.ExecContext(ctx, query)
				if err != nil {
					return fmt.Sprintf("%s %v", PrefixSQLError, err)
				}
				n, err := res.RowsAffected()
				if err != nil {
					return "OK"
				}
				return fmt.Sprintf("OK, %d row(s) affected", n)
			}

			cols, rows, truncated, err := databases.Query(ctx, db, query, opts.MaxRows)
			if err != nil {
				return fmt.Sprintf("%s %v", PrefixSQLError, err)
			}
			return formatRows(cols, rows, truncated, opts)
		},
	}
}

func formatRows(cols []string, rows []databases.Row, truncated bool, opts SQLOptions) string {
	if len(rows) == 0 {
		return "(0 rows) columns: " + strings.Join(cols, " | ")
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	for _, r := range rows {
		b.WriteByte('\n')
		for i, v := range r {
			if i > 0 {
				b.WriteString(" | ")
			}
			if opts.MaxCellLen > 0 && utf8.RuneCountInString(v) > opts.MaxCellLen {
				v = Truncate(v, opts.MaxCellLen) + "..."
			}
			b.WriteString(v)
		}
	}
	fmt.Fprintf(&b, "\n(%d rows", len(rows))
	if truncated {
		fmt.Fprintf(&b, ", truncated at %d", opts.MaxRows)
	}
	b.WriteByte(')')
	return b.String()
}
