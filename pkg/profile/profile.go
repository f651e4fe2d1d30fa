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

// Package profile loads the named source allow-lists selected per request.
package profile

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Store when no profile has the given id.
	ErrNotFound = errors.New("profile not found")

	// ErrUnsupportedMergeStrategy is returned for any merge strategy other
	// than union.
	ErrUnsupportedMergeStrategy = errors.New("unsupported merge strategy")
)

const MergeUnion = "union"

type Profile struct {
	ID             string   `yaml:"id,omitempty" json:"id"`
	AllowedSources []string `yaml:"allowed_sources" json:"allowed_sources"`
	MergeStrategy  string   `yaml:"merge_strategy,omitempty" json:"merge_strategy"`
}

func (p *Profile) SetDefaults() {
	if p.MergeStrategy == "" {
		p.MergeStrategy = MergeUnion
	}
}

func (p *Profile) Validate() error {
	if p.MergeStrategy != MergeUnion {
		return fmt.Errorf("profile %q: %w %q (only %q is implemented)",
			p.ID, ErrUnsupportedMergeStrategy, p.MergeStrategy, MergeUnion)
	}
	return nil
}

// Filter returns the allowed sources present in configured, in profile order
// and without duplicates.
func (p *Profile) Filter(configured []string) []string {
	known := make(map[string]bool, len(configured))
	for _, name := range configured {
		known[name] = true
	}
	seen := make(map[string]bool, len(p.AllowedSources))
	out := make([]string, 0, len(p.AllowedSources))
	for _, name := range p.AllowedSources {
		if !known[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Fallback is the profile used when id is not defined: every configured
// source, merged by union.
func Fallback(id string, configured []string) *Profile {
	return &Profile{
		ID:             id,
		AllowedSources: append([]string(nil), configured...),
		MergeStrategy:  MergeUnion,
	}
}

// Store loads profiles by id.
type Store interface {
	Load(ctx context.Context, id string) (*Profile, error)
}

// Resolve loads id from store, falling back to all configured sources when it
// does not exist. Any other store error is returned, as is an invalid profile.
func Resolve(ctx context.Context, store Store, id string, configured []string) (*Profile, error) {
	if store == nil {
		return Fallback(id, configured), nil
	}
	p, err := store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Fallback(id, configured), nil
	}
	if err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}
	return p, nil
}

// LoadError wraps every failure Resolve reports: store I/O errors and
// invalid profiles.
type LoadError struct {
	ID  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load profile %q: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err came from Resolve.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// MapStore serves profiles declared inline in configuration.
type MapStore map[string]Profile

func (m MapStore) Load(ctx context.Context, id string) (*Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.ID = id
	p.AllowedSources = append([]string(nil), p.AllowedSources...)
	return &p, nil
}

// Chain consults each store in order and returns the first profile found.
type Chain []Store

func (c Chain) Load(ctx context.Context, id string) (*Profile, error) {
	for _, s := range c {
		p, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return p, err
	}
	return nil, ErrNotFound
}
