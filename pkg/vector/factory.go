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
)

// ProviderType identifies a store implementation.
type ProviderType string

const (
	// ProviderMemory keeps everything in process memory.
	ProviderMemory ProviderType = "memory"

	// ProviderChromem uses chromem-go, optionally persisted to disk.
	ProviderChromem ProviderType = "chromem"
)

// Config is the vector_store configuration section.
type Config struct {
	Type    ProviderType   `yaml:"type"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderMemory
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

func (c *Config) Validate() error {
	switch c.Type {
	case ProviderMemory, ProviderChromem:
		return nil
	default:
		return fmt.Errorf("unsupported vector store type %q (use memory or chromem)", c.Type)
	}
}

// New creates a store of the configured type with a fixed dimension.
func New(ctx context.Context, cfg Config, dim int) (Store, error) {
	cfg.SetDefaults()
	switch cfg.Type {
	case ProviderMemory:
		s, err := NewMemoryStore(dim)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProviderChromem:
		s, err := NewChromemStore(ctx, *cfg.Chromem, dim)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported vector store type %q", cfg.Type)
	}
}
