package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf, FormatSimple)

	log.With("request", "r-1").Info("source finished", "source", "invoices_db", "reason", "no rows found")
	log.Debug("hidden")

	assert.Equal(t, "INFO source finished request=r-1 source=invoices_db reason=\"no rows found\"\n", buf.String())
}

func TestNew_VerboseFormatHasTimestamp(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelDebug, &buf, FormatVerbose).WithGroup("orchestrator").Debug("dispatch", "sources", 3)

	out := buf.String()
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} DEBUG dispatch orchestrator.sources=3`, out)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelWarn, &buf, FormatJSON).Warn("slow source", "source", "crm_api")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "slow source", rec["msg"])
	assert.Equal(t, "crm_api", rec["source"])
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contextbridge.log")
	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	New(slog.LevelInfo, f, FormatSimple).Info("started")
	cleanup()

	f, cleanup, err = OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(len("INFO started\n")), info.Size())
}
