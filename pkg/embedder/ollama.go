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
	"log/slog"
	"sync"

	"github.com/kadirpekel/contextbridge/pkg/ollama"
)

// OllamaEmbedder embeds text through an Ollama server.
//
// Requests are serialised: the llama runner crashes when it receives
// concurrent embedding requests.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
	dim    int
	mu     sync.Mutex
}

// NewOllama builds an embedder for model. When dim is zero the dimension is
// discovered with one probe request.
func NewOllama(ctx context.Context, client *ollama.Client, model string, dim int) (*OllamaEmbedder, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	e := &OllamaEmbedder{client: client, model: model, dim: dim}

	if dim <= 0 {
		probe, err := e.Embed(ctx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
		}
		e.dim = len(probe)
		slog.Debug("Discovered embedding dimension", "model", model, "dimension", e.dim)
	}
	return e, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(vec, e.dim); err != nil {
		return nil, err
	}
	return Normalize(vec), nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dim }
func (e *OllamaEmbedder) Model() string  { return e.model }
func (e *OllamaEmbedder) Close() error   { return nil }
