package connector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
)

func newInvoiceDB(t *testing.T, pool *dbpool.Pool) string {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "invoices.db")
	db, err := pool.Get(context.Background(), "sqlite", dsn, dbpool.Options{})
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE invoices (client TEXT, date TEXT, amount REAL, status TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO invoices VALUES
		('ACME Corp', '2024-01-10', 1200.5, 'unpaid'),
		('ACME Corp', '2024-02-11', 300, 'paid'),
		('Globex', '2024-03-01', 99.9, 'unpaid')`)
	require.NoError(t, err)
	return dsn
}

func TestSQLConnector_Execute(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)

	rows, err := c.Execute(context.Background(),
		"SELECT client, date, amount, status FROM invoices WHERE client='ACME Corp' AND status='unpaid';")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "ACME Corp", rows[0]["client"])
	assert.Equal(t, "unpaid", rows[0]["status"])
	assert.Equal(t, 1200.5, rows[0]["amount"])
}

func TestSQLConnector_RejectsWrites(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)

	for _, q := range []string{"DELETE FROM invoices", "SELECT 1; DELETE FROM invoices"} {
		_, err := c.Execute(context.Background(), q)
		require.Error(t, err, q)
		assert.True(t, errors.Is(err, ErrNotReadOnly), q)

		var execErr *ExecutionError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, "invoices_db", execErr.Source)
	}

	rows, err := c.Execute(context.Background(), "SELECT COUNT(*) AS n FROM invoices")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows[0]["n"])
}

func TestSQLConnector_MaxRows(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn, MaxRows: 2}, pool)
	require.NoError(t, err)

	rows, err := c.Execute(context.Background(), "SELECT * FROM invoices")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSQLConnector_IntrospectsSchema(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)

	schema := c.Schema()
	require.Contains(t, schema, "invoices")
	assert.Equal(t, []string{"client", "date", "amount", "status"}, schema["invoices"].Fields)
	assert.Equal(t, "invoices(client, date, amount, status)", schema.Text(KindTabular))
}

func TestSQLConnector_DeclaredSchemaWins(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	declared := map[string]Entry{"invoices": {Fields: []string{"client", "status"}}}
	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn, Schema: declared}, pool)
	require.NoError(t, err)

	assert.Equal(t, []string{"client", "status"}, c.Schema()["invoices"].Fields)
}

func TestSQLConnector_HonoursContext(t *testing.T) {
	pool := dbpool.New()
	defer pool.Close()
	dsn := newInvoiceDB(t, pool)

	c, err := NewSQL(context.Background(), "invoices_db", SQLConfig{Driver: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Execute(ctx, "SELECT * FROM invoices")
	assert.Error(t, err)
}
