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

// Package dbpool shares database/sql handles between tabular connectors and
// the trace store.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names as registered with database/sql.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// NormalizeDriver maps user-facing driver aliases onto registered names.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (use sqlite, postgres or mysql)", driver)
	}
}

type Options struct {
	MaxConns int
	MaxIdle  int
}

// Pool manages shared database connections keyed by driver and DSN.
// SQLite handles use a single connection to avoid "database is locked" errors.
type Pool struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

func New() *Pool {
	return &Pool{pools: make(map[string]*sql.DB)}
}

// Get returns the shared handle for driver+dsn, opening it on first use.
func (p *Pool) Get(ctx context.Context, driver, dsn string, opts Options) (*sql.DB, error) {
	driverName, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s: dsn is required", driverName)
	}

	key := driverName + "|" + dsn

	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.pools[key]; ok {
		return db, nil
	}

	db, err := open(ctx, driverName, dsn, opts)
	if err != nil {
		return nil, err
	}
	p.pools[key] = db
	return db, nil
}

func open(ctx context.Context, driverName, dsn string, opts Options) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driverName == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if opts.MaxConns > 0 {
			db.SetMaxOpenConns(opts.MaxConns)
		}
		if opts.MaxIdle > 0 {
			db.SetMaxIdleConns(opts.MaxIdle)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driverName == SQLite {
		if _, err := db.ExecContext(pingCtx, "PRAGMA journal_mode=WAL"); err != nil {
			slog.Debug("SQLite WAL mode not enabled", "error", err)
		}
		if _, err := db.ExecContext(pingCtx, "PRAGMA busy_timeout=10000"); err != nil {
			slog.Warn("Failed to set busy timeout", "error", err)
		}
	}

	return db, nil
}

// Close closes every handle the pool opened.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, db := range p.pools {
		if err := db.Close(); err != nil {
			driver, _, _ := strings.Cut(key, "|")
			errs = append(errs, fmt.Errorf("failed to close %s pool: %w", driver, err))
		}
	}
	p.pools = make(map[string]*sql.DB)

	return errors.Join(errs...)
}
