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

package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/anush008/fastembed-go"
)

const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

var fastembedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"all-MiniLM-L6-v2":                       fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

var fastembedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
}

// FastEmbedder runs an ONNX sentence-embedding model in process.
type FastEmbedder struct {
	model *fastembed.FlagEmbedding
	name  string
	dim   int
	mu    sync.Mutex
}

func NewFastEmbed(model, cacheDir string, maxLength int) (*FastEmbedder, error) {
	if model == "" {
		model = DefaultFastEmbedModel
	}
	id, ok := fastembedModels[model]
	if !ok {
		return nil, fmt.Errorf("unsupported fastembed model %q", model)
	}
	if cacheDir == "" {
		cacheDir = "local_cache"
	}
	if maxLength <= 0 {
		maxLength = 512
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                id,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedder{model: flag, name: model, dim: fastembedDimensions[id]}, nil
}

func (e *FastEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	vec, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query: %w", err)
	}
	return Normalize(vec), nil
}

func (e *FastEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	vecs, err := e.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("fastembed passages: %w", err)
	}
	for _, v := range vecs {
		Normalize(v)
	}
	return vecs, nil
}

func (e *FastEmbedder) Dimension() int { return e.dim }
func (e *FastEmbedder) Model() string  { return e.name }

func (e *FastEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
