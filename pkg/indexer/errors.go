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

package indexer

import "fmt"

// IndexingError is an embedding or storage failure while adding documents.
type IndexingError struct {
	Source    string // empty when the batch spans several sources
	Operation string // "seed" or "index"
	Err       error
}

func (e *IndexingError) Error() string {
	msg := "[indexer] " + e.Operation
	if e.Source != "" {
		msg += fmt.Sprintf(" (source: %s)", e.Source)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// RetrievalError is an embedding or search failure while retrieving context.
type RetrievalError struct {
	Component string // "embedder" or "vector_store"
	Query     string
	Err       error
}

func (e *RetrievalError) Error() string {
	msg := fmt.Sprintf("[%s] retrieve", e.Component)
	if e.Query != "" {
		query := e.Query
		if len(query) > 50 {
			query = query[:50] + "..."
		}
		msg += fmt.Sprintf(" (query: %q)", query)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
