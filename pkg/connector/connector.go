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

// Package connector provides a uniform read-only surface over tabular,
// parameterized-API and static-document sources.
//
// Every connector carries an explicit Kind resolved once when it is built.
// Tabular and parameterized connectors are active: they implement Querier
// and take part in the per-request fan-out. Document connectors are passive:
// they implement Lister and are seeded into the similarity index once.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindTabular       Kind = "tabular"
	KindParameterized Kind = "parameterized"
	KindDocument      Kind = "document"
)

// ParseKind resolves a configured kind name, accepting the short aliases
// sql, rest, api and files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tabular", "sql":
		return KindTabular, nil
	case "parameterized", "rest", "api", "http":
		return KindParameterized, nil
	case "document", "static-document", "files", "docs":
		return KindDocument, nil
	default:
		return "", fmt.Errorf("unknown connector kind %q", s)
	}
}

// Passive reports whether connectors of this kind are seeded rather than queried.
func (k Kind) Passive() bool {
	return k == KindDocument
}

// Row is one result record: field name to scalar value.
type Row map[string]any

// Entry describes one table or route.
type Entry struct {
	Fields      []string `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
	Method      string   `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method"`
	Params      []string `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Schema maps table or route names to their declared shape.
type Schema map[string]Entry

// Text renders the schema for a query-generation prompt. Output is sorted and
// therefore stable across calls.
func (s Schema) Text(kind Kind) string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		e := s[name]
		switch kind {
		case KindTabular:
			fmt.Fprintf(&b, "%s(%s)", name, strings.Join(e.Fields, ", "))
		case KindParameterized:
			method := e.Method
			if method == "" {
				method = "GET"
			}
			fmt.Fprintf(&b, "%s %s", strings.ToUpper(method), name)
			if len(e.Params) > 0 {
				fmt.Fprintf(&b, "?%s", strings.Join(e.Params, "&"))
			}
		default:
			b.WriteString(name)
		}
		if e.Description != "" {
			fmt.Fprintf(&b, " -- %s", e.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Spec describes a connector to build. Type is accepted as an alias of Kind.
type Spec struct {
	Name   string         `json:"name" yaml:"name" mapstructure:"name"`
	Kind   string         `json:"kind,omitempty" yaml:"kind,omitempty" mapstructure:"kind"`
	Type   string         `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

func (s Spec) KindName() string {
	if s.Kind != "" {
		return s.Kind
	}
	return s.Type
}

type Connector interface {
	Name() string
	Kind() Kind
	// Schema must be side-effect free; it is called on every request.
	Schema() Schema
	Close() error
}

// Querier is implemented by active connectors.
type Querier interface {
	Connector
	// Execute runs one read-only query. Implementations re-check the query
	// shape before touching the underlying resource.
	Execute(ctx context.Context, query string) ([]Row, error)
}

// Lister is implemented by passive connectors.
type Lister interface {
	Connector
	ListAll(ctx context.Context) ([]Row, error)
}

// Set is an ordered collection of uniquely named connectors.
type Set struct {
	order  []string
	byName map[string]Connector
}

func NewSet(conns ...Connector) (*Set, error) {
	s := &Set{byName: make(map[string]Connector, len(conns))}
	for _, c := range conns {
		if _, dup := s.byName[c.Name()]; dup {
			return nil, &ConfigurationError{Connector: c.Name(), Message: "duplicate connector name"}
		}
		s.order = append(s.order, c.Name())
		s.byName[c.Name()] = c
	}
	return s, nil
}

func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

func (s *Set) Len() int {
	return len(s.order)
}

func (s *Set) Get(name string) (Connector, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Filter returns the connectors named in names, in that order, skipping
// unknown and repeated names. The result shares connectors with s.
func (s *Set) Filter(names []string) *Set {
	out := &Set{byName: make(map[string]Connector)}
	for _, name := range names {
		c, ok := s.byName[name]
		if !ok {
			continue
		}
		if _, seen := out.byName[name]; seen {
			continue
		}
		out.order = append(out.order, name)
		out.byName[name] = c
	}
	return out
}

// Schemas returns every connector's schema keyed by name.
func (s *Set) Schemas() map[string]Schema {
	out := make(map[string]Schema, len(s.order))
	for _, name := range s.order {
		out[name] = s.byName[name].Schema()
	}
	return out
}

func (s *Set) Close() error {
	var errs []error
	for _, name := range s.order {
		if err := s.byName[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
