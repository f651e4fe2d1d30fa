package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("finance", 20*time.Millisecond, nil)
	m.RecordRequest("finance", 20*time.Millisecond, errors.New("boom"))
	m.RecordSource("invoices_db", "completed", 5*time.Millisecond)
	m.RecordSource("invoices_db", "timed_out", 0)
	m.RecordIndexed("row", 3, 3)
	m.RecordHTTPRequest("POST", "/query", 200, 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("finance", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("finance", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceOutcomes.WithLabelValues("invoices_db", "timed_out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.indexedDocs.WithLabelValues("row")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storeSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/query", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "contextbridge_requests_total"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("p", time.Second, nil)
	m.RecordSource("s", "completed", time.Second)
	m.RecordIndexed("row", 1, 1)
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	assert.Nil(t, m.Registry())
}

func TestTracerConfig(t *testing.T) {
	cfg := TracerConfig{Enabled: true}
	cfg.SetDefaults()
	assert.Equal(t, "otlp", cfg.Exporter)
	assert.Equal(t, 1.0, cfg.SamplingRate)
	require.NoError(t, cfg.Validate())

	cfg.Exporter = "zipkin"
	assert.Error(t, cfg.Validate())
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
