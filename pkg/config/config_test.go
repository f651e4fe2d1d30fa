package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/embedder"
	"github.com/kadirpekel/contextbridge/pkg/vector"
)

const sampleYAML = `
server:
  port: 9090
ollama:
  base_url: ${CB_TEST_OLLAMA:-http://ollama:11434}
llm:
  model: $CB_TEST_MODEL
  requests_per_second: 2
embedder:
  type: hash
  dimension: 64
vector_store:
  type: chromem
  chromem:
    persist_path: data/index
orchestrator:
  max_concurrency: 4
  per_source_limit: 2
  source_timeout: 5s
  overall_timeout: 3s
profiles:
  dir: profiles
  inline:
    finance:
      allowed_sources: [invoices_db, docs]
traces:
  backend: jsonl
connectors:
  - name: invoices_db
    kind: sql
    config:
      driver: sqlite3
      dsn: ${CB_TEST_DSN}
  - name: docs
    type: files
    config:
      root_dir: ./docs
`

func TestParse(t *testing.T) {
	t.Setenv("CB_TEST_MODEL", "llama3")
	t.Setenv("CB_TEST_DSN", "data/invoices.db")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 2.0, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, embedder.ProviderHash, cfg.Embedder.Type)
	assert.Equal(t, 64, cfg.Embedder.Dimension)
	assert.Equal(t, vector.ProviderChromem, cfg.VectorStore.Type)
	require.NotNil(t, cfg.VectorStore.Chromem)
	assert.Equal(t, "data/index", cfg.VectorStore.Chromem.PersistPath)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.SourceTimeout)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.OverallTimeout)
	assert.Equal(t, 10, cfg.Orchestrator.TopK)
	assert.Equal(t, []string{"invoices_db", "docs"}, cfg.Profiles.Inline["finance"].AllowedSources)
	assert.Equal(t, audit.BackendJSONL, cfg.Traces.Backend)
	assert.Equal(t, "data/traces.jsonl", cfg.Traces.Path)

	require.Len(t, cfg.Connectors, 2)
	assert.Equal(t, "data/invoices.db", cfg.Connectors[0].Config["dsn"])
	assert.Equal(t, "files", cfg.Connectors[1].KindName())
	assert.Equal(t, []string{"invoices_db", "docs"}, cfg.ConnectorNames())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "llama3.2:1b", cfg.LLM.Model)
	assert.Equal(t, embedder.ProviderFastEmbed, cfg.Embedder.Type)
	assert.Equal(t, vector.ProviderMemory, cfg.VectorStore.Type)
	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, "profiles", cfg.Profiles.Dir)
	assert.Equal(t, audit.BackendSQLite, cfg.Traces.Backend)
	assert.Empty(t, cfg.Connectors)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown kind", "connectors:\n  - name: x\n    kind: graphql\n", "connectors"},
		{"duplicate connector", "connectors:\n  - {name: a, kind: sql}\n  - {name: a, kind: rest}\n", "duplicate connector"},
		{"missing name", "connectors:\n  - {kind: sql}\n", "name is required"},
		{"bad log level", "logger:\n  level: loud\n", "invalid log level"},
		{"caps", "orchestrator:\n  max_concurrency: 2\n  per_source_limit: 3\n", "per_source_limit"},
		{"merge strategy", "profiles:\n  inline:\n    p:\n      allowed_sources: [a]\n      merge_strategy: intersect\n", "unsupported merge strategy"},
		{"ollama url", "ollama:\n  base_url: localhost:11434\n", "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_InvalidDocument(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	assert.Error(t, err)
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("CB_SET", "value")
	t.Setenv("CB_EMPTY", "")

	assert.Equal(t, "value", expandEnvString("${CB_SET}"))
	assert.Equal(t, "value/x", expandEnvString("$CB_SET/x"))
	assert.Equal(t, "fallback", expandEnvString("${CB_EMPTY:-fallback}"))
	assert.Equal(t, "value", expandEnvString("${CB_SET:-fallback}"))
	assert.Equal(t, "", expandEnvString("${CB_UNSET_VARIABLE}"))
	assert.Equal(t, "no vars", expandEnvString("no vars"))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contextbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: phi3\n"), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "phi3", cfg.LLM.Model)

	l, err = NewLoader(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	_, err = l.Load(context.Background())
	assert.Error(t, err)
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contextbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: phi3\n"), 0o644))

	reloaded := make(chan *Config, 4)
	l, err := NewLoader(path, WithOnChange(func(c *Config) { reloaded <- c }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// Give the watcher time to register before editing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: mistral\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "mistral", cfg.LLM.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestProfilesConfig_Store(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops.yaml"), []byte("allowed_sources: [crm_api]\n"), 0o644))

	cfg := ProfilesConfig{Dir: dir}
	p, err := cfg.Store().Load(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm_api"}, p.AllowedSources)
}

func TestLoadFile_ExampleConfig(t *testing.T) {
	cfg, err := LoadFile(context.Background(), filepath.Join("..", "..", "examples", "contextbridge.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"invoices_db", "crm_api", "docs"}, cfg.ConnectorNames())
	assert.Equal(t, vector.ProviderChromem, cfg.VectorStore.Type)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.Contains(t, cfg.Profiles.Inline, "ops")
}
