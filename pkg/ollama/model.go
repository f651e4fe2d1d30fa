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

package ollama

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Model binds a chat model name and sampling options to a client. It is the
// single-turn completion surface used by query generation, summarisation and
// answering.
type Model struct {
	client      *Client
	name        string
	temperature float64
	maxTokens   int
}

func NewModel(client *Client, name string, temperature float64, maxTokens int) *Model {
	return &Model{client: client, name: name, temperature: temperature, maxTokens: maxTokens}
}

func (m *Model) Name() string {
	return m.name
}

// Complete runs one system+user exchange and returns the trimmed reply.
func (m *Model) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := otel.Tracer("contextbridge.llm").Start(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.model", m.name),
			attribute.String("llm.provider", "ollama"),
		),
	)
	defer span.End()

	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	resp, err := m.client.Chat(ctx, ChatRequest{
		Model:    m.name,
		Messages: messages,
		Options:  &Options{Temperature: m.temperature, NumPredict: m.maxTokens},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.PromptEvalCount),
		attribute.Int("llm.tokens.output", resp.EvalCount),
	)
	span.SetStatus(codes.Ok, "")
	return strings.TrimSpace(resp.Message.Content), nil
}
