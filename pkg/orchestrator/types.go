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

package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// Config bounds one orchestrator's scheduling.
type Config struct {
	// MaxConcurrency caps source units running at once across all requests.
	MaxConcurrency int `yaml:"max_concurrency"`

	// PerSourceLimit caps concurrent units against any single source.
	PerSourceLimit int `yaml:"per_source_limit"`

	// SourceTimeout bounds one source's query execution.
	SourceTimeout time.Duration `yaml:"source_timeout"`

	// OverallTimeout bounds the wait for all sources of a request.
	OverallTimeout time.Duration `yaml:"overall_timeout"`

	// TopK is the number of context items retrieved per request.
	TopK int `yaml:"top_k"`
}

func (c *Config) SetDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.PerSourceLimit <= 0 {
		c.PerSourceLimit = 3
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 15 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 7 * time.Second
	}
	if c.TopK <= 0 {
		c.TopK = 10
	}
}

func (c *Config) Validate() error {
	if c.PerSourceLimit > c.MaxConcurrency {
		return fmt.Errorf("per_source_limit (%d) cannot exceed max_concurrency (%d)", c.PerSourceLimit, c.MaxConcurrency)
	}
	return nil
}

// Outcome is the terminal state of one source unit.
type Outcome int

const (
	// Completed: the query ran and returned rows (possibly none).
	Completed Outcome = iota
	// Skipped: the generator reported that no query is possible.
	Skipped
	// TimedOut: execution exceeded the per-source or overall deadline.
	TimedOut
	// Failed: generation, validation or execution failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case TimedOut:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range []Outcome{Completed, Skipped, TimedOut, Failed} {
		if candidate.String() == s {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", s)
}

// SourceResult is produced exactly once per active source unit.
type SourceResult struct {
	Source    string          `json:"source"`
	Query     string          `json:"query"`
	Rows      []connector.Row `json:"-"`
	RowCount  int             `json:"row_count"`
	LatencyMS int64           `json:"latency_ms"`
	Outcome   Outcome         `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
}

// Citation points from a snippet back to where it came from: a source and
// the query that produced it, or a document source with file and location.
type Citation struct {
	Source   string
	Query    string
	File     string
	Loc      string
	Document bool
}

func (c Citation) MarshalJSON() ([]byte, error) {
	if c.Document {
		return json.Marshal(struct {
			Source string `json:"source"`
			File   string `json:"file"`
			Loc    string `json:"loc"`
		}{c.Source, c.File, c.Loc})
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Query  string `json:"query"`
	}{c.Source, c.Query})
}

func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source string  `json:"source"`
		Query  string  `json:"query"`
		File   *string `json:"file"`
		Loc    *string `json:"loc"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Citation{Source: raw.Source, Query: raw.Query}
	if raw.File != nil || raw.Loc != nil {
		c.Document = true
		if raw.File != nil {
			c.File = *raw.File
		}
		if raw.Loc != nil {
			c.Loc = *raw.Loc
		}
	}
	return nil
}

// ContextPack is the assembled, cited context for one request.
type ContextPack struct {
	TraceID   string            `json:"trace_id"`
	Context   string            `json:"context"`
	Snippets  []string          `json:"snippets"`
	Citations []Citation        `json:"citations"`
	Queries   map[string]string `json:"queries"`
	Notes     []string          `json:"notes"`
	ElapsedMS int64             `json:"elapsed_ms"`

	// Sources lists the result of every active source that finished
	// before the overall deadline, in scheduling order.
	Sources []SourceResult `json:"sources,omitempty"`
}
