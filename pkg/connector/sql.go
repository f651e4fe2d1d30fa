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

package connector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
)

const defaultMaxRows = 500

type SQLConfig struct {
	Driver   string           `mapstructure:"driver"`
	DSN      string           `mapstructure:"dsn"`
	Schema   map[string]Entry `mapstructure:"schema"`
	MaxRows  int              `mapstructure:"max_rows"`
	MaxConns int              `mapstructure:"max_conns"`
}

// SQLConnector runs SELECT statements against a database/sql handle taken
// from a shared pool. The pool owns the handle; Close is a no-op.
type SQLConnector struct {
	name    string
	driver  string
	db      *sql.DB
	schema  Schema
	maxRows int
}

func NewSQL(ctx context.Context, name string, cfg SQLConfig, pool *dbpool.Pool) (*SQLConnector, error) {
	driver, err := dbpool.NormalizeDriver(cfg.Driver)
	if err != nil {
		return nil, newConfigError(name, "invalid driver", err)
	}
	if pool == nil {
		return nil, newConfigError(name, "database pool is required", nil)
	}

	db, err := pool.Get(ctx, driver, cfg.DSN, dbpool.Options{MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, newConfigError(name, "cannot open database", err)
	}

	c := &SQLConnector{
		name:    name,
		driver:  driver,
		db:      db,
		schema:  Schema(cfg.Schema),
		maxRows: cfg.MaxRows,
	}
	if c.maxRows <= 0 {
		c.maxRows = defaultMaxRows
	}

	if len(c.schema) == 0 {
		schema, err := c.introspect(ctx)
		if err != nil {
			slog.Warn("Schema introspection failed", "source", name, "error", err)
		}
		c.schema = schema
	}

	return c, nil
}

func (c *SQLConnector) Name() string   { return c.name }
func (c *SQLConnector) Kind() Kind     { return KindTabular }
func (c *SQLConnector) Schema() Schema { return c.schema }
func (c *SQLConnector) Close() error   { return nil }

// Execute runs query if and only if it is a single SELECT statement. At most
// the configured number of rows is returned.
func (c *SQLConnector) Execute(ctx context.Context, query string) ([]Row, error) {
	if !IsReadOnly(KindTabular, query) {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: ErrNotReadOnly}
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}

	var out []Row
	for rows.Next() {
		if len(out) >= c.maxRows {
			slog.Debug("Row cap reached", "source", c.name, "max_rows", c.maxRows)
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = scalar(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}

	return out, nil
}

func scalar(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}

func (c *SQLConnector) introspect(ctx context.Context) (Schema, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var query string
	switch c.driver {
	case dbpool.SQLite:
		query = `SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p
			WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
			ORDER BY m.name, p.cid`
	case dbpool.Postgres:
		query = `SELECT table_name, column_name FROM information_schema.columns
			WHERE table_schema = current_schema() ORDER BY table_name, ordinal_position`
	case dbpool.MySQL:
		query = `SELECT table_name, column_name FROM information_schema.columns
			WHERE table_schema = DATABASE() ORDER BY table_name, ordinal_position`
	default:
		return Schema{}, fmt.Errorf("introspection not supported for %s", c.driver)
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return Schema{}, err
	}
	defer rows.Close()

	schema := Schema{}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return schema, err
		}
		e := schema[table]
		e.Fields = append(e.Fields, column)
		schema[table] = e
	}
	return schema, rows.Err()
}
