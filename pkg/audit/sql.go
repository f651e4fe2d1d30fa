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

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/orchestrator"
)

// createdAtLayout is fixed-width so that lexical order is time order in
// every dialect.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

const traceColumns = "trace_id, created_at, user_name, question, profile, scopes, model, answer, " +
	"context, snippets, citations, queries, notes, elapsed_ms"

var ddl = map[string][]string{
	dbpool.SQLite: {
		`CREATE TABLE IF NOT EXISTS traces (
			trace_id   TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			user_name  TEXT,
			question   TEXT,
			profile    TEXT,
			scopes     TEXT,
			model      TEXT,
			answer     TEXT,
			context    TEXT,
			snippets   TEXT,
			citations  TEXT,
			queries    TEXT,
			notes      TEXT,
			elapsed_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at)`,
	},
	dbpool.Postgres: {
		`CREATE TABLE IF NOT EXISTS traces (
			trace_id   VARCHAR(64) PRIMARY KEY,
			created_at VARCHAR(40) NOT NULL,
			user_name  TEXT,
			question   TEXT,
			profile    TEXT,
			scopes     JSONB,
			model      TEXT,
			answer     TEXT,
			context    TEXT,
			snippets   JSONB,
			citations  JSONB,
			queries    JSONB,
			notes      JSONB,
			elapsed_ms BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at)`,
	},
	dbpool.MySQL: {
		`CREATE TABLE IF NOT EXISTS traces (
			trace_id   VARCHAR(64) PRIMARY KEY,
			created_at VARCHAR(40) NOT NULL,
			user_name  TEXT,
			question   TEXT,
			profile    TEXT,
			scopes     JSON,
			model      TEXT,
			answer     LONGTEXT,
			context    LONGTEXT,
			snippets   JSON,
			citations  JSON,
			queries    JSON,
			notes      JSON,
			elapsed_ms BIGINT,
			INDEX idx_traces_created_at (created_at)
		)`,
	},
}

// SQLStore keeps traces in one table of a sqlite, postgres or mysql database.
// The handle belongs to the pool; Close does not close it.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(ctx context.Context, pool *dbpool.Pool, driver, dsn string) (*SQLStore, error) {
	if pool == nil {
		return nil, errors.New("trace store requires a database pool")
	}
	name, err := dbpool.NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	db, err := pool.Get(ctx, name, dsn, dbpool.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}

	s := &SQLStore{db: db, driver: name}
	for _, stmt := range ddl[name] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create trace schema: %w", err)
		}
	}
	return s, nil
}

// rebind rewrites "?" placeholders for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != dbpool.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Write(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM traces WHERE trace_id = ?"), rec.TraceID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.TraceID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check trace %s: %w", rec.TraceID, err)
	}

	args := []any{
		rec.TraceID,
		rec.CreatedAt.UTC().Format(createdAtLayout),
		rec.User,
		rec.Question,
		rec.Profile,
		mustJSON(rec.Scopes, "[]"),
		rec.Model,
		rec.Answer,
		rec.Context,
		mustJSON(rec.Snippets, "[]"),
		mustJSON(rec.Citations, "[]"),
		mustJSON(rec.Queries, "{}"),
		mustJSON(rec.Notes, "[]"),
		rec.ElapsedMS,
	}
	query := s.rebind("INSERT INTO traces (" + traceColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write trace %s: %w", rec.TraceID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, traceID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+traceColumns+" FROM traces WHERE trace_id = ?"), traceID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, traceID)
	}
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", traceID, err)
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+traceColumns+" FROM traces ORDER BY created_at DESC, trace_id DESC LIMIT ? OFFSET ?"),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list traces: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return nil }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                                          Record
		createdAt                                    string
		user, question, profile, model, answer, text sql.NullString
		scopes, snippets, citations, queries, notes  []byte
		elapsed                                      sql.NullInt64
	)
	err := row.Scan(&rec.TraceID, &createdAt, &user, &question, &profile, &scopes, &model, &answer,
		&text, &snippets, &citations, &queries, &notes, &elapsed)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, err = time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.User = user.String
	rec.Question = question.String
	rec.Profile = profile.String
	rec.Model = model.String
	rec.Answer = answer.String
	rec.Context = text.String
	rec.ElapsedMS = elapsed.Int64

	rec.Snippets = []string{}
	rec.Citations = []orchestrator.Citation{}
	rec.Queries = map[string]string{}
	rec.Notes = []string{}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{scopes, &rec.Scopes},
		{snippets, &rec.Snippets},
		{citations, &rec.Citations},
		{queries, &rec.Queries},
		{notes, &rec.Notes},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode trace %s: %w", rec.TraceID, err)
		}
	}
	return &rec, nil
}

func mustJSON(v any, empty string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return empty
	}
	return string(b)
}
