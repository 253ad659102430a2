package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alanlin8901/special-happiness/pkg/databases"
	"github.com/alanlin8901/special-happiness/pkg/document"
)

// SQLSource renders database rows as documents, one per row:
//
//	Table: Customers | CustomerID: ALFKI; CompanyName: Alfreds Futterkiste
type SQLSource struct {
	DB      *sql.DB
	Dialect string

	// Tables restricts the source; empty reads every base table.
	Tables []string

	// RowLimit caps rows per table; 0 reads all.
	RowLimit int
}

// Documents reads the configured tables. A table that cannot be read is
// logged and skipped; an unknown configured table is an error.
func (s SQLSource) Documents(ctx context.Context) ([]document.Document, error) {
	all, err := databases.Tables(ctx, s.DB, s.Dialect)
	if err != nil {
		return nil, err
	}

	tables := all
	if len(s.Tables) > 0 {
		tables = make([]databases.Table, 0, len(s.Tables))
		for _, name := range s.Tables {
			t, ok := databases.Find(all, name)
			if !ok {
				return nil, fmt.Errorf("table %q not found (available: %s)", name, strings.Join(databases.Names(all), ", "))
			}
			tables = append(tables, t)
		}
	}

	var docs []document.Document
	for _, t := range tables {
		rows, err := s.tableDocuments(ctx, t)
		if err != nil {
			slog.Warn("Skipping table", "table", t.Name, "error", err)
			continue
		}
		slog.Debug("Read table", "table", t.Name, "rows", len(rows))
		docs = append(docs, rows...)
	}
	return docs, nil
}

func (s SQLSource) tableDocuments(ctx context.Context, t databases.Table) ([]document.Document, error) {
	var docs []document.Document
	_, err := databases.Each(ctx, s.DB, databases.SelectAll(s.Dialect, t.Name, s.RowLimit), func(cols []string, row databases.Row) bool {
		docs = append(docs, RowDocument(t.Name, len(docs), cols, row))
		return true
	})
	return docs, err
}

// RowDocument renders one row. NULL columns are omitted.
func RowDocument(table string, index int, cols []string, row databases.Row) document.Document {
	parts := make([]string, 0, len(cols))
	for i, c := range cols {
		if i >= len(row) || row[i] == "NULL" {
			continue
		}
		parts = append(parts, c+": "+row[i])
	}
	idx := strconv.Itoa(index)
	return document.Document{
		ID:      ChunkID("table:"+table, idx),
		Content: "Table: " + table + " | " + strings.Join(parts, "; "),
		Metadata: map[string]string{
			document.MetaTable:      table,
			document.MetaChunkIndex: idx,
		},
	}
}
