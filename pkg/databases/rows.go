package databases

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Row is one result row with every value rendered as text. NULL becomes
// "NULL".
type Row []string

// Each runs query and calls fn with the column names and every row until fn
// returns false or the rows are exhausted. It returns the column names.
func Each(ctx context.Context, db *sql.DB, query string, fn func(cols []string, row Row) bool) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return cols, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		if !fn(cols, row) {
			break
		}
	}
	return cols, rows.Err()
}

// Query collects at most maxRows rows of query. truncated reports whether
// more rows were available.
func Query(ctx context.Context, db *sql.DB, query string, maxRows int) (cols []string, rows []Row, truncated bool, err error) {
	cols, err = Each(ctx, db, query, func(_ []string, r Row) bool {
		if maxRows > 0 && len(rows) == maxRows {
			truncated = true
			return false
		}
		rows = append(rows, r)
		return true
	})
	return cols, rows, truncated, err
}

// FormatValue renders a scanned driver value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
