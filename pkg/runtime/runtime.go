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


// Package runtime wires configured components into a running engine and
// serves questions end to end: context assembly, answering and tracing.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/config"
	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/embedder"
	"github.com/kadirpekel/contextbridge/pkg/indexer"
	"github.com/kadirpekel/contextbridge/pkg/observability"
	"github.com/kadirpekel/contextbridge/pkg/ollama"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
	"github.com/kadirpekel/contextbridge/pkg/querygen"
	"github.com/kadirpekel/contextbridge/pkg/reasoning"
	"github.com/kadirpekel/contextbridge/pkg/textify"
	"github.com/kadirpekel/contextbridge/pkg/vector"
)

// Runtime owns every long-lived component built from one configuration.
type Runtime struct {
	cfg *config.Config

	pool         *dbpool.Pool
	connectors   *connector.Set
	embedder     embedder.Embedder
	store        vector.Store
	indexer      *indexer.Indexer
	orchestrator *orchestrator.Orchestrator
	reasoner     reasoning.Reasoner
	traces       audit.Store
	metrics      *observability.Metrics

	shutdownTracer func(context.Context) error
	now            func() time.Time
}

type options struct {
	generator querygen.Generator
	reasoner  reasoning.Reasoner
	embedder  embedder.Embedder
	skipWarm  bool
}

type Option func(*options)

// WithGenerator replaces the LLM query generator.
func WithGenerator(g querygen.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithReasoner replaces the LLM reasoner.
func WithReasoner(r reasoning.Reasoner) Option {
	return func(o *options) { o.reasoner = r }
}

// WithEmbedder replaces the configured embedder.
func WithEmbedder(e embedder.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithoutWarmup skips seeding static sources during New.
func WithoutWarmup() Option {
	return func(o *options) { o.skipWarm = true }
}

// New builds the runtime. Static-document sources are seeded before it
// returns unless WithoutWarmup is given; seeding failures are logged and
// retried on the next request.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	built := &Runtime{cfg: cfg, pool: dbpool.New(), now: time.Now}
	defer func() {
		if err != nil {
			_ = built.Close()
		}
	}()

	if cfg.Observability.Metrics.Enabled {
		built.metrics = observability.NewMetrics()
	}
	built.shutdownTracer, err = observability.InitTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	built.connectors, err = connector.NewSetFromSpecs(ctx, cfg.Connectors, built.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to build connectors: %w", err)
	}

	client := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout)
	queryModel := ollama.NewModel(client, cfg.LLM.Model, cfg.LLM.Temperature, 0)
	limiter := newLimiter(cfg.LLM)

	built.embedder = o.embedder
	if built.embedder == nil {
		built.embedder, err = embedder.New(ctx, cfg.Embedder, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	built.store, err = vector.New(ctx, cfg.VectorStore, built.embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	ixOpts := []indexer.Option{indexer.WithMetrics(built.metrics)}
	if cfg.LLM.Summaries {
		ixOpts = append(ixOpts, indexer.WithSummarizer(textify.NewLLMSummarizer(queryModel, limiter, cfg.LLM.SummarySampleRows)))
	}
	built.indexer, err = indexer.New(built.embedder, built.store, ixOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	gen := o.generator
	if gen == nil {
		gen = querygen.NewLLMGenerator(queryModel, limiter)
	}
	built.orchestrator = orchestrator.New(cfg.Orchestrator, built.connectors, gen, built.indexer,
		orchestrator.WithProfiles(cfg.Profiles.Store()),
		orchestrator.WithPool(built.pool),
		orchestrator.WithMetrics(built.metrics),
	)

	built.reasoner = o.reasoner
	if built.reasoner == nil {
		built.reasoner = reasoning.NewLLMReasoner(ollama.NewModel(client, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens))
	}

	built.traces, err = audit.New(ctx, cfg.Traces, built.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store: %w", err)
	}

	if !o.skipWarm {
		for _, note := range built.orchestrator.Warm(ctx) {
			slog.Warn("Static source not seeded", "note", note)
		}
	}

	slog.Info("Runtime ready",
		"connectors", built.connectors.Len(),
		"embedder", built.embedder.Model(),
		"vector_store", cfg.VectorStore.Type,
		"traces", cfg.Traces.Backend,
		"indexed", built.indexer.Len())
	return built, nil
}

func newLimiter(cfg config.LLMConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, cfg.Burst)
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Metrics returns nil when metrics are disabled.
func (r *Runtime) Metrics() *observability.Metrics {
	return r.metrics
}

// Traces returns the trace store.
func (r *Runtime) Traces() audit.Store {
	return r.traces
}

// SourceSchema is the schema of one configured connector.
type SourceSchema struct {
	Kind   connector.Kind   `json:"kind"`
	Schema connector.Schema `json:"schema"`
}

// Schemas returns the schema of every configured connector.
func (r *Runtime) Schemas() map[string]SourceSchema {
	out := make(map[string]SourceSchema, r.connectors.Len())
	for name, schema := range r.connectors.Schemas() {
		c, _ := r.connectors.Get(name)
		out[name] = SourceSchema{Kind: c.Kind(), Schema: schema}
	}
	return out
}

// Close releases every component. It is safe on a partially built runtime.
func (r *Runtime) Close() error {
	var errs []error
	if r.traces != nil {
		errs = append(errs, r.traces.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.embedder != nil {
		errs = append(errs, r.embedder.Close())
	}
	if r.connectors != nil {
		errs = append(errs, r.connectors.Close())
	}
	if r.pool != nil {
		errs = append(errs, r.pool.Close())
	}
	if r.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, r.shutdownTracer(ctx))
		cancel()
	}
	return errors.Join(errs...)
}
