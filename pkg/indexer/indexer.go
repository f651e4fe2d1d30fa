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

// Package indexer turns connector output into stored, retrievable documents.
//
// Static corpora are seeded once per source and deduplicated by content hash.
// Live results are textified and appended on every request, together with an
// optional best-effort summary per source. All store mutations are
// serialised by the indexer.
package indexer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/embedder"
	"github.com/kadirpekel/contextbridge/pkg/observability"
	"github.com/kadirpekel/contextbridge/pkg/textify"
	"github.com/kadirpekel/contextbridge/pkg/vector"
)

// Item is one retrieved document.
type Item struct {
	Text     string          `json:"text"`
	Metadata vector.Metadata `json:"metadata"`
	Score    float32         `json:"score"`
}

// Batch is the aggregated output of one request's fan-out.
type Batch struct {
	Question string
	Rows     map[string][]connector.Row
	// Schemas holds the rendered schema text per source.
	Schemas map[string]string
	Queries map[string]string
}

// Indexer embeds documents into an append-only store and retrieves them.
type Indexer struct {
	embedder   embedder.Embedder
	store      vector.Store
	summarizer textify.Summarizer
	metrics    *observability.Metrics

	mu     sync.Mutex
	seeded map[string]bool
	hashes map[string]struct{}
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithSummarizer enables one summary document per source with rows.
func WithSummarizer(s textify.Summarizer) Option {
	return func(ix *Indexer) { ix.summarizer = s }
}

// WithMetrics counts indexed documents on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// New creates an indexer over store. Content hashes of entries already in the
// store are loaded so that seeding a persistent store stays idempotent across
// restarts.
func New(emb embedder.Embedder, store vector.Store, opts ...Option) (*Indexer, error) {
	if emb.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("embedder dimension %d does not match vector store dimension %d",
			emb.Dimension(), store.Dimension())
	}
	ix := &Indexer{
		embedder: emb,
		store:    store,
		seeded:   make(map[string]bool),
		hashes:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ix)
	}

	for id := 0; id < store.Len(); id++ {
		text, meta, ok := store.Get(id)
		if ok && meta.Type == vector.DocFiles {
			ix.hashes[contentHash(text, meta.File, meta.Loc, meta.Source)] = struct{}{}
		}
	}
	return ix, nil
}

// Seeded reports whether source has been seeded by this process.
func (ix *Indexer) Seeded(source string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.seeded[source]
}

// Len returns the number of stored documents.
func (ix *Indexer) Len() int {
	return ix.store.Len()
}

// SeedStaticCorpus stores a passive source's rows. Rows carry "text", "file"
// and "loc" fields. A source is seeded at most once; rows with empty text or
// an already stored (text, file, loc, source) hash are skipped. The source is
// marked seeded only after its batch is stored.
func (ix *Indexer) SeedStaticCorpus(ctx context.Context, source string, rows []connector.Row) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.seeded[source] {
		return 0, nil
	}

	var (
		texts  []string
		metas  []vector.Metadata
		hashes []string
		batch  = make(map[string]struct{})
	)
	for _, row := range rows {
		text := field(row, "text")
		if strings.TrimSpace(text) == "" {
			continue
		}
		file, loc := field(row, "file"), field(row, "loc")
		h := contentHash(text, file, loc, source)
		if _, dup := ix.hashes[h]; dup {
			continue
		}
		if _, dup := batch[h]; dup {
			continue
		}
		batch[h] = struct{}{}
		hashes = append(hashes, h)
		texts = append(texts, text)
		metas = append(metas, vector.Metadata{Source: source, Type: vector.DocFiles, File: file, Loc: loc})
	}

	if len(texts) > 0 {
		if err := ix.append(ctx, texts, metas); err != nil {
			return 0, &IndexingError{Source: source, Operation: "seed", Err: err}
		}
		for _, h := range hashes {
			ix.hashes[h] = struct{}{}
		}
		ix.metrics.RecordIndexed(string(vector.DocFiles), len(texts), ix.store.Len())
	}
	ix.seeded[source] = true

	slog.Debug("Seeded static corpus", "source", source, "rows", len(rows), "added", len(texts))
	return len(texts), nil
}

// IndexResults appends one row document per textified row of every source
// and at most one summary document per source with rows. Summary failures
// are logged and skipped. All documents are embedded in a single batch.
func (ix *Indexer) IndexResults(ctx context.Context, b Batch) (int, error) {
	sources := make([]string, 0, len(b.Rows))
	for src := range b.Rows {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var (
		texts     []string
		metas     []vector.Metadata
		summaries int
	)
	for _, src := range sources {
		rows := b.Rows[src]
		query := b.Queries[src]
		for _, line := range textify.ToLines(rows, src) {
			texts = append(texts, line)
			metas = append(metas, vector.Metadata{Source: src, Type: vector.DocRow, Query: query})
		}

		if ix.summarizer == nil || len(rows) == 0 {
			continue
		}
		summary, err := ix.summarizer.Summarize(ctx, textify.SummaryRequest{
			Question:   b.Question,
			SchemaText: b.Schemas[src],
			Rows:       rows,
			Source:     src,
			Query:      query,
		})
		if err != nil {
			slog.Warn("Summary skipped", "source", src, "error", err)
			continue
		}
		texts = append(texts, summary)
		metas = append(metas, vector.Metadata{Source: src, Type: vector.DocSummary, Query: query})
		summaries++
	}

	if len(texts) == 0 {
		return 0, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.append(ctx, texts, metas); err != nil {
		return 0, &IndexingError{Operation: "index", Err: err}
	}
	ix.metrics.RecordIndexed(string(vector.DocRow), len(texts)-summaries, ix.store.Len())
	if summaries > 0 {
		ix.metrics.RecordIndexed(string(vector.DocSummary), summaries, ix.store.Len())
	}
	return len(texts), nil
}

// append embeds and stores one batch; ix.mu must be held.
func (ix *Indexer) append(ctx context.Context, texts []string, metas []vector.Metadata) error {
	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d documents: %w", len(texts), err)
	}
	if _, err := ix.store.Add(ctx, embeddings, texts, metas); err != nil {
		return err
	}
	return nil
}

type retrieveOptions struct {
	sources map[string]bool
}

type RetrieveOption func(*retrieveOptions)

// WithSources restricts retrieval to documents from the named sources.
func WithSources(names ...string) RetrieveOption {
	return func(o *retrieveOptions) {
		o.sources = make(map[string]bool, len(names))
		for _, n := range names {
			o.sources[n] = true
		}
	}
}

// RetrieveContextItems returns up to topK stored documents most similar to
// question, ordered by non-increasing score. Hits outside the store bounds
// and malformed entries are skipped.
func (ix *Indexer) RetrieveContextItems(ctx context.Context, question string, topK int, opts ...RetrieveOption) ([]Item, error) {
	if topK <= 0 || ix.store.Len() == 0 {
		return nil, nil
	}
	var o retrieveOptions
	for _, opt := range opts {
		opt(&o)
	}

	q, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, &RetrievalError{Component: "embedder", Query: question, Err: err}
	}

	fetch := topK
	if o.sources != nil {
		// Filtering happens after the search; fetch everything so it
		// cannot starve the result.
		fetch = max(topK, ix.store.Len())
	}
	hits, err := ix.store.Search(ctx, q, fetch)
	if err != nil {
		return nil, &RetrievalError{Component: "vector_store", Query: question, Err: err}
	}

	n := ix.store.Len()
	items := make([]Item, 0, min(topK, len(hits)))
	for _, h := range hits {
		if h.ID < 0 || h.ID >= n {
			continue
		}
		if math.IsNaN(float64(h.Score)) {
			continue
		}
		text, meta, ok := ix.store.Get(h.ID)
		if !ok || text == "" || meta.Source == "" {
			continue
		}
		if o.sources != nil && !o.sources[meta.Source] {
			continue
		}
		meta.Score = h.Score
		items = append(items, Item{Text: text, Metadata: meta, Score: h.Score})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

func field(row connector.Row, key string) string {
	v, ok := textify.FormatValue(row[key])
	if !ok {
		return ""
	}
	return v
}

func contentHash(text, file, loc, source string) string {
	h := sha1.New()
	for _, part := range []string{text, file, loc, source} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
