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

package textify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// ErrEmptySummary is returned when the model produced no text.
var ErrEmptySummary = errors.New("empty summary")

// SummaryRequest carries everything a summarizer may use.
type SummaryRequest struct {
	Question   string
	SchemaText string
	Rows       []connector.Row
	Source     string
	Query      string
}

// Summarizer produces one natural-language paragraph for a source's rows.
// Summaries are best-effort; callers must tolerate errors.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// Completer is a single-turn text model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const summarySystem = "You write concise, factual summaries of query results."

const summaryPrompt = `Describe the information in these results that is relevant to the user question, in one short factual paragraph.

User question: %s

Executed query/request:
%s

Schema:
%s

Results (sample, CSV):
%s

Output only the factual summary.`

// summaryPromptRows is how many rows of the sample reach the prompt.
const summaryPromptRows = 5

// LLMSummarizer summarises a capped sample of rows with a chat model.
type LLMSummarizer struct {
	model      Completer
	limiter    *rate.Limiter
	sampleRows int
}

// NewLLMSummarizer caps the sample at sampleRows (30 when <= 0); the first
// five rows of that sample are sent to the model. A nil limiter disables
// rate limiting.
func NewLLMSummarizer(model Completer, limiter *rate.Limiter, sampleRows int) *LLMSummarizer {
	if sampleRows <= 0 {
		sampleRows = 30
	}
	return &LLMSummarizer{model: model, limiter: limiter, sampleRows: sampleRows}
}

// Summarize returns "[source] <summary>".
func (s *LLMSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if len(req.Rows) == 0 {
		return "", ErrEmptySummary
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	query := req.Query
	if query == "" {
		query = "(not provided)"
	}
	sample := req.Rows
	if len(sample) > s.sampleRows {
		sample = sample[:s.sampleRows]
	}
	prompt := fmt.Sprintf(summaryPrompt,
		req.Question, query, req.SchemaText, CompactRows(sample, summaryPromptRows, 80))

	out, err := s.model.Complete(ctx, summarySystem, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", req.Source, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptySummary
	}
	return "[" + req.Source + "] " + out, nil
}
