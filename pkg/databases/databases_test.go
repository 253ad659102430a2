package databases

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openNorthwind(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE Customers (CustomerID TEXT PRIMARY KEY, CompanyName TEXT NOT NULL, Country TEXT);
CREATE TABLE Orders (OrderID INTEGER PRIMARY KEY, CustomerID TEXT, Freight REAL);
INSERT INTO Customers VALUES ('ALFKI', 'Alfreds Futterkiste', 'Germany'), ('ANATR', 'Ana Trujillo', NULL);
INSERT INTO Orders VALUES (10248, 'ALFKI', 32.38), (10249, 'ANATR', 11.61), (10250, 'ALFKI', 65.83);
`)
	require.NoError(t, err)
	return db
}

func TestTables_SQLite(t *testing.T) {
	db := openNorthwind(t)

	tables, err := Tables(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	require.Equal(t, []string{"Customers", "Orders"}, Names(tables))

	customers, ok := Find(tables, "customers")
	require.True(t, ok)
	assert.Equal(t, "Customers(CustomerID text, CompanyName text, Country text)", customers.String())

	_, ok = Find(tables, "Products")
	assert.False(t, ok)
}

func TestTables_UnsupportedDialect(t *testing.T) {
	db := openNorthwind(t)
	_, err := Tables(context.Background(), db, "oracle")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	db := openNorthwind(t)

	cols, rows, truncated, err := Query(context.Background(), db, "SELECT CustomerID, Country FROM Customers ORDER BY CustomerID", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"CustomerID", "Country"}, cols)
	assert.Equal(t, []Row{{"ALFKI", "Germany"}, {"ANATR", "NULL"}}, rows)
	assert.False(t, truncated)

	_, rows, truncated, err = Query(context.Background(), db, "SELECT OrderID FROM Orders ORDER BY OrderID", 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.True(t, truncated)
}

func TestSelectAll(t *testing.T) {
	tests := []struct {
		dialect string
		limit   int
		want    string
	}{
		{DialectSQLServer, 100, "SELECT TOP 100 * FROM [Order Details]"},
		{DialectMySQL, 5, "SELECT * FROM `Order Details` LIMIT 5"},
		{DialectPostgres, 0, `SELECT * FROM "Order Details"`},
		{DialectSQLite, 1, `SELECT * FROM "Order Details" LIMIT 1`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectAll(tt.dialect, "Order Details", tt.limit))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "32.38", FormatValue(32.38))
	assert.Equal(t, "1996-07-04", FormatValue(time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)))
}
