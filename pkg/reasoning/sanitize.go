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

package reasoning

import (
	"regexp"
	"strings"
)

// injectionPatterns are removed from user questions before they reach a
// prompt: role markers, instruction overrides and delimiter runs.
var injectionPatterns = regexp.MustCompile(`(?i)\b(system|assistant|user)\s*:` +
	`|ignore (all )?previous( instructions)?` +
	`|disregard previous( instructions)?` +
	"|-{3,}|={3,}|\\*{3,}|```" +
	`|</?context>`)

// SanitizeQuestion strips common prompt-injection patterns and collapses
// whitespace.
func SanitizeQuestion(q string) string {
	q = injectionPatterns.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?(?:\(\d{2,4}\)[ .\-]?|\b\d{2,4}[ .\-])\d{3,4}[ .\-]?\d{3,4}\b`)
)

// RedactPII masks email addresses, card-like digit runs and phone numbers.
func RedactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	text = cardPattern.ReplaceAllString(text, "[REDACTED_CARD]")
	text = phonePattern.ReplaceAllString(text, "[REDACTED_PHONE]")
	return text
}
