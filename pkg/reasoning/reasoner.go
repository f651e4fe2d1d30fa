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

// Package reasoning answers a question strictly from an assembled context.
package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// NoRelevantInformation is the answer when the context cannot support one.
// Callers rely on this exact text.
const NoRelevantInformation = "No relevant information found."

type Answer struct {
	Text string `json:"answer"`
}

// Grounded reports whether the answer came from the context rather than
// the no-information sentinel.
func (a Answer) Grounded() bool {
	return !strings.HasPrefix(strings.TrimSpace(a.Text), NoRelevantInformation)
}

type Reasoner interface {
	Ask(ctx context.Context, context, question string) (Answer, error)
}

// Completer is a single-turn text model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const answerSystem = `You answer strictly from the text inside <CONTEXT>.
Use no prior knowledge, definitions or guesses.
If the context does not contain the answer, reply exactly:
` + NoRelevantInformation

const answerPrompt = "<CONTEXT>\n%s\n</CONTEXT>\n\nQuestion: %s\nAnswer:"

var tagPattern = regexp.MustCompile(`</?[A-Za-z][A-Za-z_]*>`)

// LLMReasoner asks a chat model for a retrieval-only answer.
type LLMReasoner struct {
	model Completer
}

func NewLLMReasoner(model Completer) *LLMReasoner {
	return &LLMReasoner{model: model}
}

// Ask returns NoRelevantInformation without calling the model when context
// is blank. Prompt delimiters echoed by the model are stripped.
func (r *LLMReasoner) Ask(ctx context.Context, contextText, question string) (Answer, error) {
	if strings.TrimSpace(contextText) == "" {
		return Answer{Text: NoRelevantInformation}, nil
	}

	prompt := fmt.Sprintf(answerPrompt, strings.TrimSpace(contextText), SanitizeQuestion(question))
	out, err := r.model.Complete(ctx, answerSystem, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("reasoning failed: %w", err)
	}

	if strings.Contains(out, NoRelevantInformation) {
		return Answer{Text: NoRelevantInformation}, nil
	}
	out = strings.TrimSpace(tagPattern.ReplaceAllString(out, ""))
	if out == "" {
		return Answer{Text: NoRelevantInformation}, nil
	}
	return Answer{Text: out}, nil
}
