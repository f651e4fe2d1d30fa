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
	"sort"
	"sync"
)

// MemoryStore is an in-process store with exact inner-product search.
type MemoryStore struct {
	dim        int
	mu         sync.RWMutex
	embeddings [][]float32
	texts      []string
	metas      []Metadata
}

func NewMemoryStore(dim int) (*MemoryStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	return &MemoryStore{dim: dim}, nil
}

func (s *MemoryStore) Dimension() int { return s.dim }

func (s *MemoryStore) Add(ctx context.Context, embeddings [][]float32, texts []string, metas []Metadata) ([]int, error) {
	if err := validateBatch(s.dim, embeddings, texts, metas); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := len(s.texts)
	ids := make([]int, len(texts))
	for i := range texts {
		vec := make([]float32, s.dim)
		copy(vec, embeddings[i])
		s.embeddings = append(s.embeddings, vec)
		s.texts = append(s.texts, texts[i])
		s.metas = append(s.metas, metas[i])
		ids[i] = base + i
	}
	return ids, nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimension, len(query), s.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	hits := make([]Hit, len(s.embeddings))
	for id, vec := range s.embeddings {
		hits[id] = Hit{ID: id, Score: dot(query, vec)}
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Get(id int) (string, Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.texts) {
		return "", Metadata{}, false
	}
	return s.texts[id], s.metas[id], true
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

func (s *MemoryStore) Close() error { return nil }

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
