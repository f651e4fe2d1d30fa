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

// Package querygen turns a question and a source schema into one read-only
// query line, and validates that line before anything executes it.
package querygen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// Sentinels a generator returns when the source cannot answer the question.
const (
	NoSQLQuery = "-- NO SQL QUERY POSSIBLE FOR THIS QUESTION --"
	NoAPICall  = "-- NO API CALL POSSIBLE FOR THIS QUESTION --"
)

// Request is one generation call for one source.
type Request struct {
	Question   string
	Source     string
	SchemaText string
	Kind       connector.Kind
}

// Generator produces a candidate query line. Output must still pass Validate.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// NoQuery returns the sentinel for kind.
func NoQuery(kind connector.Kind) string {
	if kind == connector.KindParameterized {
		return NoAPICall
	}
	return NoSQLQuery
}

// IsNoQuery reports whether q is one of the "no query possible" sentinels.
func IsNoQuery(q string) bool {
	q = strings.TrimSpace(q)
	return strings.HasPrefix(q, "-- NO SQL QUERY POSSIBLE") || strings.HasPrefix(q, "-- NO API CALL POSSIBLE")
}

// Validate returns q when it is a sentinel or has the read-only shape for kind.
func Validate(kind connector.Kind, q string) (string, error) {
	q = strings.TrimSpace(q)
	if IsNoQuery(q) {
		return q, nil
	}
	if !connector.IsReadOnly(kind, q) {
		return "", &ValidationError{Kind: kind, Query: q}
	}
	return q, nil
}

var (
	leadingFence  = regexp.MustCompile("^```[a-zA-Z0-9]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
	selectLine    = regexp.MustCompile(`(?i)^select\b`)
	getLine       = regexp.MustCompile(`(?i)^get\s+/?\S`)
)

// Extract picks the first usable statement out of raw model output: a
// sentinel, a SELECT statement (collapsed onto one line and terminated with
// ";") or a GET call (normalised). When nothing matches the trimmed input is
// returned for Validate to reject.
func Extract(raw string, kind connector.Kind) string {
	text := strings.TrimSpace(raw)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsNoQuery(line) {
			return line
		}

		switch kind {
		case connector.KindTabular:
			if selectLine.MatchString(stripComment(line)) {
				return collectStatement(lines[i:])
			}
		case connector.KindParameterized:
			if getLine.MatchString(line) {
				return connector.NormalizeCall(line)
			}
		}
	}
	return strings.TrimSpace(raw)
}

// collectStatement joins lines up to the first ";" or blank line.
func collectStatement(lines []string) string {
	var parts []string
	for _, line := range lines {
		line = stripComment(strings.TrimSpace(line))
		if line == "" {
			if len(parts) > 0 {
				break
			}
			continue
		}
		parts = append(parts, line)
		if strings.HasSuffix(line, ";") {
			break
		}
	}
	stmt := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}
	return stmt
}

func stripComment(line string) string {
	if i := strings.Index(line, "--"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

// Static returns a fixed query per source. Sources without an entry get the
// sentinel for their kind.
type Static map[string]string

func (s Static) Generate(_ context.Context, req Request) (string, error) {
	if q, ok := s[req.Source]; ok {
		return q, nil
	}
	return NoQuery(req.Kind), nil
}

// GenerationError wraps a failure of the generation backend.
type GenerationError struct {
	Source string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("query generation for %s failed: %v", e.Source, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a candidate that is neither read-only nor a sentinel.
type ValidationError struct {
	Kind  connector.Kind
	Query string
}

func (e *ValidationError) Error() string {
	q := e.Query
	if len(q) > 100 {
		q = q[:100] + "..."
	}
	switch e.Kind {
	case connector.KindTabular:
		return fmt.Sprintf("unsafe SQL (only a single SELECT allowed): %q", q)
	case connector.KindParameterized:
		return fmt.Sprintf("unsafe API call (only GET allowed): %q", q)
	default:
		return fmt.Sprintf("%s sources are not queryable: %q", e.Kind, q)
	}
}
