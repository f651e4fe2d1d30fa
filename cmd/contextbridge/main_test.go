package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/config"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
	"github.com/kadirpekel/contextbridge/pkg/runtime"
)

func TestCLI_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("contextbridge"))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--config", "other.yaml", "ask", "-p", "finance", "unpaid", "invoices"})
	require.NoError(t, err)
	assert.Equal(t, "ask <question>", ctx.Command())
	assert.Equal(t, []string{"unpaid", "invoices"}, cli.Ask.Question)
	assert.Equal(t, "finance", cli.Ask.Profile)
	assert.True(t, filepath.IsAbs(cli.Config))

	cli = CLI{}
	parser, err = kong.New(&cli)
	require.NoError(t, err)
	ctx, err = parser.Parse([]string{"traces", "list", "--limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, "traces list", ctx.Command())
	assert.Equal(t, 5, cli.Traces.List.Limit)
}

func TestResolveLogSettings(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Setenv(LogFileEnvVar, "")
	t.Setenv(LogFormatEnvVar, "")

	s := resolveLogSettings("", "", "", nil)
	assert.Equal(t, logSettings{Level: "info", Format: DefaultLogFormat}, s)

	cfg := &config.LoggerConfig{Level: "warn", File: "cfg.log", Format: "json"}
	s = resolveLogSettings("", "", "", cfg)
	assert.Equal(t, logSettings{Level: "warn", File: "cfg.log", Format: "json"}, s)

	t.Setenv(LogLevelEnvVar, "error")
	s = resolveLogSettings("", "", "verbose", cfg)
	assert.Equal(t, "error", s.Level)
	assert.Equal(t, "verbose", s.Format)

	s = resolveLogSettings("debug", "", "", cfg)
	assert.Equal(t, "debug", s.Level)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	_, err := initLogger("loud", "", "", nil)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestPrintSummary(t *testing.T) {
	cfg, err := config.Parse([]byte(`
embedder: {type: hash}
connectors:
  - {name: invoices_db, kind: sql, config: {driver: sqlite3, dsn: "file::memory:"}}
  - {name: docs, kind: files, config: {root_dir: ./docs}}
profiles:
  inline:
    support: {allowed_sources: [docs]}
    finance: {allowed_sources: [invoices_db, docs]}
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, "contextbridge.yaml", cfg)
	out := buf.String()
	assert.Contains(t, out, "Configuration is valid: contextbridge.yaml")
	assert.Contains(t, out, "Connectors (2):")
	assert.Contains(t, out, "  - invoices_db (tabular)")
	assert.Contains(t, out, "  - docs (document)")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("finance")), bytes.Index(buf.Bytes(), []byte("support")))
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, &runtime.Answer{
		Answer: "ACME owes 1200.5.",
		Citations: []orchestrator.Citation{
			{Source: "invoices_db", Query: "SELECT * FROM invoices;"},
			{Source: "docs", File: "policy.md", Loc: "chars 0-40", Document: true},
		},
		TraceID:   "t-1",
		ElapsedMS: 12,
		Notes:     []string{"crm_api timeout: execution exceeded 15s"},
	})

	want := `ACME owes 1200.5.

Sources:
  - invoices_db: SELECT * FROM invoices;
  - docs: policy.md (chars 0-40)

Notes:
  - crm_api timeout: execution exceeded 15s

trace t-1 (12 ms)
`
	assert.Equal(t, want, buf.String())
}

func TestOpenTraceStore(t *testing.T) {
	cfg := audit.Config{Backend: audit.BackendJSONL, Path: filepath.Join(t.TempDir(), "traces.jsonl")}
	ctx := context.Background()

	err := openTraceStore(ctx, cfg, func(ctx context.Context, s audit.Store) error {
		return s.Write(ctx, &audit.Record{
			ContextPack: orchestrator.ContextPack{TraceID: "t-1"},
			Question:    "q",
			CreatedAt:   time.Now(),
		})
	})
	require.NoError(t, err)

	err = openTraceStore(ctx, cfg, func(ctx context.Context, s audit.Store) error {
		rec, err := s.Get(ctx, "t-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "q", rec.Question)
		return nil
	})
	require.NoError(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
