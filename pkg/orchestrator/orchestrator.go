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

// Package orchestrator assembles a cited context pack for one question.
//
// A request resolves its active connector set, seeds passive sources once,
// fans out to every active source concurrently, indexes whatever came back
// and retrieves the most relevant snippets. Each source is isolated: its
// failures and timeouts become notes on the pack and never fail the request.
//
// Cancellation of a source whose execution is already running is
// best-effort. The unit stops waiting when its deadline passes, but a
// connector that ignores its context may keep running in the background
// until it returns on its own; that result is discarded.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/indexer"
	"github.com/kadirpekel/contextbridge/pkg/observability"
	"github.com/kadirpekel/contextbridge/pkg/profile"
	"github.com/kadirpekel/contextbridge/pkg/querygen"
	"github.com/kadirpekel/contextbridge/pkg/vector"
)

// Request is one question to assemble context for.
type Request struct {
	Question  string
	ProfileID string

	// Override, when non-nil, replaces the configured connector set for
	// this request. Profile filtering is bypassed.
	Override []connector.Spec
}

// Orchestrator assembles context packs from a connector set.
type Orchestrator struct {
	cfg        Config
	connectors *connector.Set
	generator  querygen.Generator
	indexer    *indexer.Indexer
	profiles   profile.Store
	pool       *dbpool.Pool
	metrics    *observability.Metrics
	tracer     trace.Tracer

	global    *semaphore.Weighted
	mu        sync.Mutex
	perSource map[string]*semaphore.Weighted
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProfiles sets the profile store. Without one every request uses all
// configured sources.
func WithProfiles(s profile.Store) Option {
	return func(o *Orchestrator) { o.profiles = s }
}

// WithPool sets the database pool used to build override connectors.
func WithPool(p *dbpool.Pool) Option {
	return func(o *Orchestrator) { o.pool = p }
}

// WithMetrics records request and source metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator over connectors. A nil set means no sources.
func New(cfg Config, connectors *connector.Set, gen querygen.Generator, ix *indexer.Indexer, opts ...Option) *Orchestrator {
	cfg.SetDefaults()
	if connectors == nil {
		connectors, _ = connector.NewSet()
	}
	o := &Orchestrator{
		cfg:        cfg,
		connectors: connectors,
		generator:  gen,
		indexer:    ix,
		tracer:     observability.Tracer("contextbridge/orchestrator"),
		global:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		perSource:  make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pool == nil {
		o.pool = dbpool.New()
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Run assembles the context pack for req. Errors are returned only for
// malformed override connector specs and profile store failures; every
// per-source fault is reported in the pack's notes.
func (o *Orchestrator) Run(ctx context.Context, req Request) (pack *ContextPack, err error) {
	start := time.Now()
	traceID := uuid.NewString()

	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("trace_id", traceID),
		attribute.String("profile", req.ProfileID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.metrics.RecordRequest(req.ProfileID, time.Since(start), err)
	}()

	set, release, err := o.activeSet(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()

	pack = &ContextPack{
		TraceID:   traceID,
		Snippets:  []string{},
		Citations: []Citation{},
		Queries:   map[string]string{},
		Notes:     []string{},
	}

	var (
		passive []connector.Lister
		active  []connector.Querier
	)
	for _, name := range set.Names() {
		c, _ := set.Get(name)
		if c.Kind().Passive() {
			if l, ok := c.(connector.Lister); ok {
				passive = append(passive, l)
				continue
			}
		} else if q, ok := c.(connector.Querier); ok {
			active = append(active, q)
			continue
		}
		pack.Notes = append(pack.Notes, fmt.Sprintf("%s error: %s connector does not support its kind", name, c.Kind()))
	}
	span.SetAttributes(attribute.Int("sources.active", len(active)), attribute.Int("sources.passive", len(passive)))

	pack.Notes = append(pack.Notes, o.seed(ctx, passive)...)

	results := o.fanOut(ctx, req.Question, active)

	rowsBySource := make(map[string][]connector.Row)
	schemas := make(map[string]string, len(active))
	latency := make(map[string]int64, len(active))
	// Only passive sources and sources that completed in this request may
	// be cited; older documents from a source that failed now are stale.
	retrievable := make([]string, 0, len(passive)+len(active))
	for _, l := range passive {
		retrievable = append(retrievable, l.Name())
	}
	var pending []string
	for _, q := range active {
		name := q.Name()
		schemas[name] = q.Schema().Text(q.Kind())

		r, ok := results[name]
		if !ok {
			pending = append(pending, name)
			continue
		}
		pack.Sources = append(pack.Sources, r)

		switch r.Outcome {
		case Completed:
			rowsBySource[name] = r.Rows
			pack.Queries[name] = r.Query
			latency[name] = r.LatencyMS
			retrievable = append(retrievable, name)
		case Skipped:
			pack.Queries[name] = ""
		case TimedOut:
			pack.Queries[name] = r.Query
			pack.Notes = append(pack.Notes, fmt.Sprintf("%s timeout: %s", name, r.Reason))
		case Failed:
			pack.Queries[name] = r.Query
			pack.Notes = append(pack.Notes, fmt.Sprintf("%s error: %s", name, r.Reason))
		}
	}
	for _, name := range pending {
		pack.Notes = append(pack.Notes, fmt.Sprintf("%s timeout: no result within the overall deadline of %s", name, o.cfg.OverallTimeout))
	}

	if _, err := o.indexer.IndexResults(ctx, indexer.Batch{
		Question: req.Question,
		Rows:     rowsBySource,
		Schemas:  schemas,
		Queries:  pack.Queries,
	}); err != nil {
		slog.Warn("Indexing failed", "trace_id", traceID, "error", err)
		pack.Notes = append(pack.Notes, "indexing error: "+err.Error())
	}

	items, err := o.indexer.RetrieveContextItems(ctx, req.Question, o.cfg.TopK, indexer.WithSources(retrievable...))
	if err != nil {
		slog.Warn("Retrieval failed", "trace_id", traceID, "error", err)
		pack.Notes = append(pack.Notes, "retrieval error: "+err.Error())
		items = nil
	}

	for _, it := range items {
		pack.Snippets = append(pack.Snippets, it.Text)
	}
	pack.Context = strings.Join(pack.Snippets, "\n")
	pack.Citations = Citations(items, pack.Queries)
	pack.ElapsedMS = elapsed(pack.Citations, latency)

	slog.Info("Context assembled",
		"trace_id", traceID,
		"profile", req.ProfileID,
		"sources", len(active)+len(passive),
		"snippets", len(pack.Snippets),
		"notes", len(pack.Notes),
		"elapsed_ms", pack.ElapsedMS)
	return pack, nil
}

// activeSet resolves the connectors serving req. The release function
// closes connectors built for an override.
func (o *Orchestrator) activeSet(ctx context.Context, req Request) (*connector.Set, func(), error) {
	if req.Override != nil {
		set, err := connector.NewSetFromSpecs(ctx, req.Override, o.pool)
		if err != nil {
			return nil, nil, err
		}
		return set, func() {
			if err := set.Close(); err != nil {
				slog.Warn("Failed to close override connectors", "error", err)
			}
		}, nil
	}

	configured := o.connectors.Names()
	p, err := profile.Resolve(ctx, o.profiles, req.ProfileID, configured)
	if err != nil {
		return nil, nil, err
	}
	return o.connectors.Filter(p.Filter(configured)), func() {}, nil
}

// seed stores each passive source's corpus once per process.
func (o *Orchestrator) seed(ctx context.Context, passive []connector.Lister) []string {
	var notes []string
	for _, l := range passive {
		name := l.Name()
		if o.indexer.Seeded(name) {
			continue
		}
		rows, err := l.ListAll(ctx)
		if err != nil {
			slog.Warn("Listing static corpus failed", "source", name, "error", err)
			notes = append(notes, fmt.Sprintf("%s error: seeding failed: %v", name, err))
			continue
		}
		added, err := o.indexer.SeedStaticCorpus(ctx, name, rows)
		if err != nil {
			slog.Warn("Seeding static corpus failed", "source", name, "error", err)
			notes = append(notes, fmt.Sprintf("%s error: seeding failed: %v", name, err))
			continue
		}
		slog.Info("Seeded static source", "source", name, "chunks", added)
	}
	return notes
}

// Warm seeds every configured static-document source ahead of the first
// request and returns one note per source that could not be seeded.
func (o *Orchestrator) Warm(ctx context.Context) []string {
	var passive []connector.Lister
	for _, name := range o.connectors.Names() {
		c, _ := o.connectors.Get(name)
		if l, ok := c.(connector.Lister); ok && c.Kind().Passive() {
			passive = append(passive, l)
		}
	}
	return o.seed(ctx, passive)
}

// fanOut runs one unit per active source and collects results until all
// have reported or the overall deadline passes. Sources missing from the
// returned map were still pending.
func (o *Orchestrator) fanOut(ctx context.Context, question string, active []connector.Querier) map[string]SourceResult {
	collected := make(map[string]SourceResult, len(active))
	if len(active) == 0 {
		return collected
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.OverallTimeout)
	defer cancel()

	out := make(chan SourceResult, len(active))
	for _, q := range active {
		go func(q connector.Querier) {
			out <- o.runSource(runCtx, question, q)
		}(q)
	}

	for len(collected) < len(active) {
		select {
		case r := <-out:
			collected[r.Source] = r
		case <-runCtx.Done():
			slog.Warn("Overall deadline reached", "pending", len(active)-len(collected), "timeout", o.cfg.OverallTimeout)
			return collected
		}
	}
	return collected
}

func (o *Orchestrator) sourceLimit(name string) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	sem, ok := o.perSource[name]
	if !ok {
		sem = semaphore.NewWeighted(int64(o.cfg.PerSourceLimit))
		o.perSource[name] = sem
	}
	return sem
}

// Citations maps retrieved items to citations, dropping exact duplicates
// while keeping first-seen order. Document items cite file and location;
// all others cite the query recorded for their source.
func Citations(items []indexer.Item, queries map[string]string) []Citation {
	out := make([]Citation, 0, len(items))
	seen := make(map[Citation]bool, len(items))
	for _, it := range items {
		var c Citation
		if it.Metadata.Type == vector.DocFiles {
			c = Citation{Source: it.Metadata.Source, File: it.Metadata.File, Loc: it.Metadata.Loc, Document: true}
		} else {
			c = Citation{Source: it.Metadata.Source, Query: queries[it.Metadata.Source]}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// elapsed sums the latency of each distinct source that appears in citations.
func elapsed(citations []Citation, latency map[string]int64) int64 {
	var total int64
	counted := make(map[string]bool, len(citations))
	for _, c := range citations {
		if counted[c.Source] {
			continue
		}
		counted[c.Source] = true
		total += latency[c.Source]
	}
	return total
}
