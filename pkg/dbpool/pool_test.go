package dbpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDriver(t *testing.T) {
	tests := map[string]string{
		"":           SQLite,
		"sqlite":     SQLite,
		"SQLite3":    SQLite,
		"postgresql": Postgres,
		"pg":         Postgres,
		"mariadb":    MySQL,
	}
	for in, want := range tests {
		got, err := NormalizeDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeDriver("oracle")
	assert.Error(t, err)
}

func TestPool_SharesHandles(t *testing.T) {
	pool := New()
	defer pool.Close()

	dsn := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	a, err := pool.Get(ctx, "sqlite", dsn, Options{})
	require.NoError(t, err)
	b, err := pool.Get(ctx, "sqlite3", dsn, Options{})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, a.Stats().MaxOpenConnections)
}

func TestPool_RequiresDSN(t *testing.T) {
	_, err := New().Get(context.Background(), "sqlite", "", Options{})
	assert.Error(t, err)
}

func TestPool_Close(t *testing.T) {
	pool := New()
	db, err := pool.Get(context.Background(), "sqlite", filepath.Join(t.TempDir(), "c.db"), Options{})
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	assert.Error(t, db.Ping())
}
