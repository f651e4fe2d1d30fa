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

package querygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// Completer is a single-turn text model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const (
	sqlSystem  = "You write safe, read-only SQL queries (SELECT only). Output ONLY the SQL, no explanations."
	restSystem = "You write REST GET requests. Output ONLY the HTTP request line, no explanations."
)

const sqlPrompt = `Write one SQL SELECT statement that answers the user question using only the tables and columns listed in the schema.

Rules:
- Output only the SQL statement.
- Never write INSERT, UPDATE, DELETE, DROP or any other modifying statement.
- Use table and column names exactly as listed. Never invent tables or columns.
- Prefer a single table; join only when clearly required.
- If the schema cannot answer the question, output exactly:
  ` + NoSQLQuery + `

Example:
Question: Show all unpaid invoices for ACME Corp
Schema:
invoices(client, date, amount, status)
SQL:
SELECT client, date, amount, status FROM invoices WHERE client = 'ACME Corp' AND status = 'unpaid';

Question: %s
Schema:
%s
SQL:`

const restPrompt = `Write one REST GET request line that answers the user question using only the endpoints and parameters listed.

Rules:
- Output only the request line, for example: GET /endpoint?param=value
- Separate query parameters with '&'.
- Never invent endpoints or parameters.
- If the endpoints cannot answer the question, output exactly:
  ` + NoAPICall + `

Example:
Question: Show all customers in Europe
Endpoints:
GET /customers?region
REST:
GET /customers?region=Europe

Question: %s
Endpoints:
%s
REST:`

// LLMGenerator asks a chat model for a query and extracts the first usable
// line from its reply. All calls share one token bucket so a wide fan-out
// does not flood the model endpoint.
type LLMGenerator struct {
	model   Completer
	limiter *rate.Limiter
}

// NewLLMGenerator builds a generator. A nil limiter disables rate limiting.
func NewLLMGenerator(model Completer, limiter *rate.Limiter) *LLMGenerator {
	return &LLMGenerator{model: model, limiter: limiter}
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var system, prompt string
	switch req.Kind {
	case connector.KindTabular:
		system, prompt = sqlSystem, fmt.Sprintf(sqlPrompt, req.Question, req.SchemaText)
	case connector.KindParameterized:
		system, prompt = restSystem, fmt.Sprintf(restPrompt, req.Question, req.SchemaText)
	default:
		return "", &GenerationError{Source: req.Source, Err: fmt.Errorf("%s sources are not queryable", req.Kind)}
	}

	if strings.TrimSpace(req.SchemaText) == "" {
		return NoQuery(req.Kind), nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &GenerationError{Source: req.Source, Err: err}
		}
	}

	raw, err := g.model.Complete(ctx, system, prompt)
	if err != nil {
		return "", &GenerationError{Source: req.Source, Err: err}
	}

	query := Extract(raw, req.Kind)
	slog.Debug("Generated query", "source", req.Source, "query", query)
	return query, nil
}
