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

// Package audit persists one trace record per answered request.
package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
)

var (
	ErrNotFound  = errors.New("trace not found")
	ErrDuplicate = errors.New("trace already recorded")
)

const DefaultListLimit = 50

// Record is a context pack plus what the caller did with it.
type Record struct {
	orchestrator.ContextPack

	Question  string    `json:"question"`
	Profile   string    `json:"profile"`
	User      string    `json:"user,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	Model     string    `json:"model"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps trace records keyed by trace id.
type Store interface {
	// Write stores rec. A second write for the same trace id fails with
	// ErrDuplicate.
	Write(ctx context.Context, rec *Record) error

	Get(ctx context.Context, traceID string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]Record, error)

	Close() error
}

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendJSONL    Backend = "jsonl"
)

// Config is the traces configuration section.
type Config struct {
	Backend Backend `yaml:"backend"`
	// Path is the database file (sqlite) or log file (jsonl).
	Path string `yaml:"path"`
	// DSN is used by the postgres and mysql backends.
	DSN string `yaml:"dsn"`
}

func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendSQLite:
			c.Path = "data/traces.db"
		case BackendJSONL:
			c.Path = "data/traces.jsonl"
		}
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendJSONL:
		if c.Path == "" {
			return fmt.Errorf("traces.path is required for the %s backend", c.Backend)
		}
	case BackendPostgres, BackendMySQL:
		if c.DSN == "" {
			return fmt.Errorf("traces.dsn is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("unsupported trace backend %q (use sqlite, postgres, mysql or jsonl)", c.Backend)
	}
	return nil
}

// New opens the configured store. SQL backends take their handle from pool.
func New(ctx context.Context, cfg Config, pool *dbpool.Pool) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendJSONL:
		s, err := NewJSONLStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create trace directory: %w", err)
			}
		}
		s, err := NewSQLStore(ctx, pool, dbpool.SQLite, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := NewSQLStore(ctx, pool, string(cfg.Backend), cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateRecord(rec *Record) error {
	if rec == nil || rec.TraceID == "" {
		return errors.New("trace record requires a trace id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}
