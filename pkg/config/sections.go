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


package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/observability"
	"github.com/kadirpekel/contextbridge/pkg/ollama"
	"github.com/kadirpekel/contextbridge/pkg/profile"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// MaxBodyBytes caps request bodies. Default: 1 MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`

	// CORSOrigins lists allowed origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Environment variables (LOG_LEVEL, LOG_FILE, LOG_FORMAT)
//  3. Config file (logger section)
//  4. Defaults (info level, simple format, stderr)
type LoggerConfig struct {
	Level string `yaml:"level,omitempty"`

	// File specifies the log file path. Empty means stderr.
	File string `yaml:"file,omitempty"`

	// Format is simple, verbose or json.
	Format string `yaml:"format,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggerConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid log format %q (valid: simple, verbose, json)", c.Format)
	}
	return nil
}

// OllamaConfig points at the Ollama server shared by every model call.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (c *OllamaConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = ollama.DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *OllamaConfig) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	return nil
}

// LLMConfig configures the chat model used for query generation,
// summaries and answers.
type LLMConfig struct {
	Model       string  `yaml:"model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps answer length. Zero leaves the model default.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// RequestsPerSecond rate-limits model calls made while assembling
	// context. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`

	// Summaries enables one LLM summary document per source result.
	Summaries bool `yaml:"summaries,omitempty"`

	// SummarySampleRows caps rows shown to the summary prompt.
	SummarySampleRows int `yaml:"summary_sample_rows,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "llama3.2:1b"
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.SummarySampleRows <= 0 {
		c.SummarySampleRows = 30
	}
}

func (c *LLMConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0")
	}
	return nil
}

// ProfilesConfig selects where profiles come from. Inline profiles win
// over files in Dir.
type ProfilesConfig struct {
	Dir    string           `yaml:"dir,omitempty"`
	Inline profile.MapStore `yaml:"inline,omitempty"`
}

func (c *ProfilesConfig) SetDefaults() {
	if c.Dir == "" && len(c.Inline) == 0 {
		c.Dir = "profiles"
	}
}

func (c *ProfilesConfig) Validate() error {
	for id, p := range c.Inline {
		p.ID = id
		p.SetDefaults()
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Store returns the profile store described by this section.
func (c *ProfilesConfig) Store() profile.Store {
	var chain profile.Chain
	if len(c.Inline) > 0 {
		chain = append(chain, c.Inline)
	}
	if c.Dir != "" {
		chain = append(chain, profile.NewFileStore(c.Dir))
	}
	return chain
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	Tracing observability.TracerConfig `yaml:"tracing"`
	Metrics MetricsConfig              `yaml:"metrics"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func (c *ObservabilityConfig) SetDefaults() {
	c.Tracing.SetDefaults()
}

func (c *ObservabilityConfig) Validate() error {
	return c.Tracing.Validate()
}
