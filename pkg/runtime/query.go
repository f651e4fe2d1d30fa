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


package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
	"github.com/kadirpekel/contextbridge/pkg/profile"
	"github.com/kadirpekel/contextbridge/pkg/reasoning"
)

// ErrEmptyQuestion is returned by Query for a blank question.
var ErrEmptyQuestion = errors.New("question is required")

// Query is one end-to-end question.
type Query struct {
	Question string
	Profile  string
	User     string

	// Scopes are recorded in the trace but not enforced.
	Scopes []string

	// Connectors, when non-nil, replace the configured sources for this
	// question only.
	Connectors []connector.Spec
}

// Answer is the result returned to callers.
type Answer struct {
	Answer    string                  `json:"answer"`
	Citations []orchestrator.Citation `json:"citations"`
	TraceID   string                  `json:"trace_id"`
	ElapsedMS int64                   `json:"elapsed_ms"`
	Notes     []string                `json:"notes"`
	Queries   map[string]string       `json:"queries,omitempty"`
}

// IsClientError reports whether err from Query was caused by the request
// itself rather than the server's configuration or dependencies.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || connector.IsConfigurationError(err)
}

// IsProfileError reports whether err came from resolving the profile.
func IsProfileError(err error) bool {
	return profile.IsLoadError(err)
}

// Query assembles context, redacts personal data from it, asks the
// reasoner and records a trace. A trace write failure is logged and does
// not fail the question.
func (r *Runtime) Query(ctx context.Context, q Query) (*Answer, error) {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	pack, err := r.orchestrator.Run(ctx, orchestrator.Request{
		Question:  question,
		ProfileID: q.Profile,
		Override:  q.Connectors,
	})
	if err != nil {
		return nil, err
	}

	pack.Context = reasoning.RedactPII(pack.Context)
	for i, s := range pack.Snippets {
		pack.Snippets[i] = reasoning.RedactPII(s)
	}

	ans, err := r.reasoner.Ask(ctx, pack.Context, question)
	if err != nil {
		slog.Error("Answering failed", "trace_id", pack.TraceID, "error", err)
		return nil, fmt.Errorf("answer question: %w", err)
	}

	rec := &audit.Record{
		ContextPack: *pack,
		Question:    question,
		Profile:     q.Profile,
		User:        q.User,
		Scopes:      q.Scopes,
		Model:       r.cfg.LLM.Model,
		Answer:      ans.Text,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.traces.Write(ctx, rec); err != nil {
		slog.Warn("Trace write failed", "trace_id", pack.TraceID, "error", err)
	}

	return &Answer{
		Answer:    ans.Text,
		Citations: pack.Citations,
		TraceID:   pack.TraceID,
		ElapsedMS: pack.ElapsedMS,
		Notes:     pack.Notes,
		Queries:   pack.Queries,
	}, nil
}
