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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps vectors in a chromem-go collection, optionally persisted
// to disk. Document ids are the decimal entry index; texts and metadata are
// mirrored in memory and rebuilt from the collection on open.
type ChromemStore struct {
	dim        int
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	texts []string
	metas []Metadata
}

type ChromemConfig struct {
	// PersistPath is a directory; empty keeps the store in memory only.
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
	Collection  string `yaml:"collection,omitempty"`
}

func NewChromemStore(ctx context.Context, cfg ChromemConfig, dim int) (*ChromemStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if cfg.Collection == "" {
		cfg.Collection = "context"
	}

	var db *chromem.DB
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database at %s: %w", cfg.PersistPath, err)
		}
		slog.Info("Opened persistent vector database", "path", cfg.PersistPath)
	} else {
		db = chromem.NewDB()
		slog.Debug("Created in-memory vector database")
	}

	// Vectors are always supplied by the caller.
	noEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", cfg.Collection, err)
	}

	s := &ChromemStore{dim: dim, db: db, collection: col}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) load(ctx context.Context) error {
	n := s.collection.Count()
	s.texts = make([]string, 0, n)
	s.metas = make([]Metadata, 0, n)
	for id := 0; id < n; id++ {
		doc, err := s.collection.GetByID(ctx, strconv.Itoa(id))
		if err != nil {
			return fmt.Errorf("vector store is not contiguous at id %d: %w", id, err)
		}
		if len(doc.Embedding) != s.dim {
			return fmt.Errorf("%w: stored id %d has %d, want %d", ErrDimension, id, len(doc.Embedding), s.dim)
		}
		s.texts = append(s.texts, doc.Content)
		s.metas = append(s.metas, metadataFromMap(doc.Metadata))
	}
	if n > 0 {
		slog.Info("Loaded vector store entries", "count", n)
	}
	return nil
}

func (s *ChromemStore) Dimension() int { return s.dim }

func (s *ChromemStore) Add(ctx context.Context, embeddings [][]float32, texts []string, metas []Metadata) ([]int, error) {
	if err := validateBatch(s.dim, embeddings, texts, metas); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := len(s.texts)
	ids := make([]int, len(texts))
	docs := make([]chromem.Document, len(texts))
	for i := range texts {
		ids[i] = base + i
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(base + i),
			Content:   texts[i],
			Metadata:  metas[i].toMap(),
			Embedding: embeddings[i],
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	s.texts = append(s.texts, texts...)
	s.metas = append(s.metas, metas...)
	return ids, nil
}

func (s *ChromemStore) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimension, len(query), s.dim)
	}
	n := min(topK, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.ID)
		if err != nil {
			slog.Debug("Skipping result with non-numeric id", "id", r.ID)
			continue
		}
		hits = append(hits, Hit{ID: id, Score: r.Similarity})
	}
	return hits, nil
}

func (s *ChromemStore) Get(id int) (string, Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.texts) {
		return "", Metadata{}, false
	}
	return s.texts[id], s.metas[id], true
}

func (s *ChromemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Close is a no-op: persistent databases write through on every Add.
func (s *ChromemStore) Close() error { return nil }
