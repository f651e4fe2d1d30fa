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

	"github.com/kadirpekel/contextbridge/pkg/ollama"
)

type ProviderType string

const (
	ProviderHash      ProviderType = "hash"
	ProviderOllama    ProviderType = "ollama"
	ProviderFastEmbed ProviderType = "fastembed"
)

type Config struct {
	Type      ProviderType `yaml:"type"`
	Model     string       `yaml:"model"`
	Dimension int          `yaml:"dimension"`
	CacheDir  string       `yaml:"cache_dir"`
	MaxLength int          `yaml:"max_length"`
}

func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderFastEmbed
	}
}

func (c *Config) Validate() error {
	switch c.Type {
	case ProviderHash, ProviderOllama, ProviderFastEmbed:
	default:
		return fmt.Errorf("unsupported embedder type %q (use fastembed, ollama or hash)", c.Type)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("embedder dimension must be >= 0")
	}
	return nil
}

// New builds the configured embedder. client is only used by the ollama
// provider.
func New(ctx context.Context, cfg Config, client *ollama.Client) (Embedder, error) {
	switch cfg.Type {
	case ProviderHash:
		return NewHash(cfg.Dimension), nil
	case ProviderOllama:
		if client == nil {
			return nil, fmt.Errorf("ollama embedder requires an ollama client")
		}
		e, err := NewOllama(ctx, client, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderFastEmbed, "":
		e, err := NewFastEmbed(cfg.Model, cfg.CacheDir, cfg.MaxLength)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported embedder type %q", cfg.Type)
	}
}
