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


// Package config loads the contextbridge YAML configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/embedder"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
	"github.com/kadirpekel/contextbridge/pkg/vector"
)

// Config is the root of the configuration file.
//
// Example:
//
//	ollama:
//	  base_url: ${OLLAMA_ENDPOINT:-http://localhost:11434}
//	llm:
//	  model: llama3.2:1b
//	profiles:
//	  dir: profiles
//	connectors:
//	  - name: invoices_db
//	    kind: sql
//	    config:
//	      driver: sqlite3
//	      dsn: data/invoices.db
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logger        LoggerConfig        `yaml:"logger"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	LLM           LLMConfig           `yaml:"llm"`
	Embedder      embedder.Config     `yaml:"embedder"`
	VectorStore   vector.Config       `yaml:"vector_store"`
	Orchestrator  orchestrator.Config `yaml:"orchestrator"`
	Profiles      ProfilesConfig      `yaml:"profiles"`
	Traces        audit.Config        `yaml:"traces"`
	Observability ObservabilityConfig `yaml:"observability"`
	Connectors    []connector.Spec    `yaml:"connectors"`
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Ollama.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Profiles.SetDefaults()
	c.Traces.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and the connector list. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	check("server", c.Server.Validate())
	check("logger", c.Logger.Validate())
	check("ollama", c.Ollama.Validate())
	check("llm", c.LLM.Validate())
	check("embedder", c.Embedder.Validate())
	check("vector_store", c.VectorStore.Validate())
	check("orchestrator", c.Orchestrator.Validate())
	check("profiles", c.Profiles.Validate())
	check("traces", c.Traces.Validate())
	check("observability", c.Observability.Validate())
	check("connectors", validateConnectors(c.Connectors))

	return errors.Join(errs...)
}

// ConnectorNames returns the configured connector names in file order.
func (c *Config) ConnectorNames() []string {
	names := make([]string, 0, len(c.Connectors))
	for _, spec := range c.Connectors {
		names = append(names, spec.Name)
	}
	return names
}

func validateConnectors(specs []connector.Spec) error {
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return fmt.Errorf("connector #%d: name is required", i+1)
		}
		if seen[name] {
			return fmt.Errorf("duplicate connector name %q", name)
		}
		seen[name] = true
		if _, err := connector.ParseKind(spec.KindName()); err != nil {
			return fmt.Errorf("connector %q: %w", name, err)
		}
	}
	return nil
}
