package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configured = []string{"invoices_db", "crm_api", "docs"}

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestFileStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "finance.yaml", "allowed_sources: [invoices_db, docs]\nmerge_strategy: union\n")
	writeProfile(t, dir, "sales.yml", "allowed_sources:\n  - crm_api\n")

	store := NewFileStore(dir)
	p, err := store.Load(context.Background(), "finance")
	require.NoError(t, err)
	assert.Equal(t, "finance", p.ID)
	assert.Equal(t, []string{"invoices_db", "docs"}, p.AllowedSources)

	p, err = store.Load(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm_api"}, p.AllowedSources)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(context.Background(), "../finance")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "broken.yaml", "allowed_sources: [unterminated\n")

	_, err := NewFileStore(dir).Load(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "finance.yaml", "allowed_sources: [invoices_db]\n")
	writeProfile(t, dir, "weird.yaml", "allowed_sources: [docs]\nmerge_strategy: intersect\n")
	store := NewFileStore(dir)
	ctx := context.Background()

	p, err := Resolve(ctx, store, "finance", configured)
	require.NoError(t, err)
	assert.Equal(t, MergeUnion, p.MergeStrategy)
	assert.Equal(t, []string{"invoices_db"}, p.Filter(configured))

	p, err = Resolve(ctx, store, "nobody", configured)
	require.NoError(t, err)
	assert.Equal(t, configured, p.AllowedSources)
	assert.Equal(t, MergeUnion, p.MergeStrategy)

	_, err = Resolve(ctx, store, "weird", configured)
	assert.ErrorIs(t, err, ErrUnsupportedMergeStrategy)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*Profile, error) {
	return nil, errors.New("disk on fire")
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	_, err := Resolve(context.Background(), brokenStore{}, "x", configured)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.True(t, IsLoadError(err))
}

func TestProfile_Filter(t *testing.T) {
	p := Profile{AllowedSources: []string{"docs", "unknown", "invoices_db", "docs"}}
	assert.Equal(t, []string{"docs", "invoices_db"}, p.Filter(configured))
}

func TestMapStore(t *testing.T) {
	store := MapStore{"ops": {AllowedSources: []string{"crm_api"}}}
	p, err := store.Load(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, "ops", p.ID)

	_, err = store.Load(context.Background(), "none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChain(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "finance.yaml", "allowed_sources: [invoices_db]\n")

	chain := Chain{
		MapStore{"sales": {AllowedSources: []string{"crm_api"}}},
		NewFileStore(dir),
	}
	ctx := context.Background()

	p, err := chain.Load(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm_api"}, p.AllowedSources)

	p, err = chain.Load(ctx, "finance")
	require.NoError(t, err)
	assert.Equal(t, []string{"invoices_db"}, p.AllowedSources)

	_, err = chain.Load(ctx, "ops")
	assert.True(t, errors.Is(err, ErrNotFound))
}
