package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
)

func record(id string, at time.Time) *Record {
	return &Record{
		ContextPack: orchestrator.ContextPack{
			TraceID:  id,
			Context:  "[invoices_db] client=ACME Corp • status=unpaid",
			Snippets: []string{"[invoices_db] client=ACME Corp • status=unpaid"},
			Citations: []orchestrator.Citation{
				{Source: "invoices_db", Query: "SELECT * FROM invoices;"},
				{Source: "docs", File: "policy.md", Loc: "chars 0-40", Document: true},
			},
			Queries:   map[string]string{"invoices_db": "SELECT * FROM invoices;"},
			Notes:     []string{"crm_api timeout: execution exceeded 15s"},
			ElapsedMS: 42,
		},
		Question:  "Show unpaid invoices for ACME Corp",
		Profile:   "finance",
		User:      "alice@corp",
		Scopes:    []string{"finance:read"},
		Model:     "llama3",
		Answer:    "ACME owes 1200.5.",
		CreatedAt: at,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	pool := dbpool.New()
	t.Cleanup(func() { _ = pool.Close() })

	sqlStore, err := New(context.Background(), Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "traces.db")}, pool)
	require.NoError(t, err)
	jsonlStore, err := New(context.Background(), Config{Backend: BackendJSONL, Path: filepath.Join(t.TempDir(), "traces.jsonl")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jsonlStore.Close() })

	return map[string]Store{"sqlite": sqlStore, "jsonl": jsonlStore}
}

func TestStore_WriteGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
			want := record("t-1", at)
			require.NoError(t, s.Write(ctx, want))

			got, err := s.Get(ctx, "t-1")
			require.NoError(t, err)
			assert.Equal(t, want.Question, got.Question)
			assert.Equal(t, want.Answer, got.Answer)
			assert.Equal(t, want.Citations, got.Citations)
			assert.Equal(t, want.Queries, got.Queries)
			assert.Equal(t, want.Notes, got.Notes)
			assert.Equal(t, want.Scopes, got.Scopes)
			assert.Equal(t, int64(42), got.ElapsedMS)
			assert.True(t, at.Equal(got.CreatedAt))

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RejectsDuplicateTraceID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, record("dup", time.Now())))
			assert.ErrorIs(t, s.Write(ctx, record("dup", time.Now())), ErrDuplicate)
			assert.Error(t, s.Write(ctx, &Record{}))
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c", "d"} {
				require.NoError(t, s.Write(ctx, record(id, base.Add(time.Duration(i)*time.Minute))))
			}

			page, err := s.List(ctx, 2, 0)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "d", page[0].TraceID)
			assert.Equal(t, "c", page[1].TraceID)

			page, err = s.List(ctx, 2, 2)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "b", page[0].TraceID)
			assert.Equal(t, "a", page[1].TraceID)

			page, err = s.List(ctx, 10, 10)
			require.NoError(t, err)
			assert.Empty(t, page)
		})
	}
}

func TestJSONLStore_RebuildsIndexOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	ctx := context.Background()

	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, record("first", time.Now())))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err = NewJSONLStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "finance", got.Profile)

	require.NoError(t, s.Write(ctx, record("second", time.Now().Add(time.Second))))
	got, err = s.Get(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", got.TraceID)
	assert.ErrorIs(t, s.Write(ctx, record("first", time.Now())), ErrDuplicate)
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "data/traces.db", cfg.Path)
	require.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{Backend: BackendPostgres}).Validate())
	assert.Error(t, (&Config{Backend: "mongo"}).Validate())
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{driver: dbpool.Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", s.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	s.driver = dbpool.SQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}
