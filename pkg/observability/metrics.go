// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contextbridge"

// Metrics holds the collectors recorded by the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency prometheus.Histogram
	sourceOutcomes *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	indexedDocs    *prometheus.CounterVec
	storeSize      prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: profile, result (ok, error)
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total context assembly requests",
			},
			[]string{"profile", "result"},
		),

		requestLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Wall-clock duration of context assembly requests",
				Buckets:   prometheus.DefBuckets,
			},
		),

		// Labels: source, outcome (completed, skipped, timed_out, failed, pending)
		sourceOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "outcomes_total",
				Help:      "Per-source outcomes of the concurrent fan-out",
			},
			[]string{"source", "outcome"},
		),

		sourceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "duration_seconds",
				Help:      "Per-source generation plus execution latency",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 7.5, 10, 15, 30},
			},
			[]string{"source"},
		),

		// Labels: type (row, summary, files)
		indexedDocs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "documents_total",
				Help:      "Documents appended to the similarity index",
			},
			[]string{"type"},
		),

		storeSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "size",
				Help:      "Current number of entries in the similarity index",
			},
		),

		// Labels: method, route (chi pattern), status
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served by the API",
			},
			[]string{"method", "route", "status"},
		),

		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) RecordRequest(profile string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(profile, result).Inc()
	m.requestLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordSource(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceOutcomes.WithLabelValues(source, outcome).Inc()
	if d > 0 {
		m.sourceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordIndexed(docType string, n int, storeSize int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.indexedDocs.WithLabelValues(docType).Add(float64(n))
	}
	m.storeSize.Set(float64(storeSize))
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
