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

// Package vector provides the append-only similarity store.
//
// A store keeps embeddings, texts and metadata in parallel, indexed by a
// monotonically increasing integer id. Entries are never updated or deleted.
package vector

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBatchMismatch is returned by Add when the embedding, text and
	// metadata counts differ.
	ErrBatchMismatch = errors.New("vector: batch size mismatch")

	// ErrDimension is returned when a vector does not match the store dimension.
	ErrDimension = errors.New("vector: dimension mismatch")
)

// DocType tags what produced a stored document.
type DocType string

const (
	DocRow     DocType = "row"
	DocSummary DocType = "summary"
	DocFiles   DocType = "files"
)

// Metadata describes where a stored text came from.
type Metadata struct {
	Source string  `json:"source"`
	Type   DocType `json:"type"`
	File   string  `json:"file,omitempty"`
	Loc    string  `json:"loc,omitempty"`
	Query  string  `json:"query,omitempty"`
	Score  float32 `json:"score,omitempty"`
}

// Hit is one search result: the entry id and its inner-product score.
type Hit struct {
	ID    int
	Score float32
}

// Store is an append-only vector store.
type Store interface {
	// Dimension returns the fixed embedding dimension.
	Dimension() int

	// Add appends a batch and returns the assigned ids. The three slices
	// must have equal length; on error nothing is stored.
	Add(ctx context.Context, embeddings [][]float32, texts []string, metas []Metadata) ([]int, error)

	// Search returns up to topK hits ordered by descending score.
	Search(ctx context.Context, query []float32, topK int) ([]Hit, error)

	// Get returns the text and metadata stored under id.
	Get(id int) (string, Metadata, bool)

	// Len returns the number of stored entries.
	Len() int

	Close() error
}

func validateBatch(dim int, embeddings [][]float32, texts []string, metas []Metadata) error {
	if len(embeddings) != len(texts) || len(texts) != len(metas) {
		return fmt.Errorf("%w: %d embeddings, %d texts, %d metadata",
			ErrBatchMismatch, len(embeddings), len(texts), len(metas))
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: row %d has %d, want %d", ErrDimension, i, len(e), dim)
		}
	}
	return nil
}

func (m Metadata) toMap() map[string]string {
	out := map[string]string{
		"source": m.Source,
		"type":   string(m.Type),
	}
	if m.File != "" {
		out["file"] = m.File
	}
	if m.Loc != "" {
		out["loc"] = m.Loc
	}
	if m.Query != "" {
		out["query"] = m.Query
	}
	return out
}

func metadataFromMap(m map[string]string) Metadata {
	return Metadata{
		Source: m["source"],
		Type:   DocType(m["type"]),
		File:   m["file"],
		Loc:    m["loc"],
		Query:  m["query"],
	}
}
