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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type jsonlEntry struct {
	offset    int64
	createdAt time.Time
	traceID   string
}

// JSONLStore appends one JSON record per line. An offset index is rebuilt
// from the file on open; lines that fail to parse are skipped.
type JSONLStore struct {
	mu      sync.RWMutex
	file    *os.File
	size    int64
	index   map[string]int
	entries []jsonlEntry
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}

	s := &JSONLStore{file: f, index: make(map[string]int)}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *JSONLStore) load() error {
	r := bufio.NewReader(io.NewSectionReader(s.file, 0, 1<<62))
	var offset int64
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var head struct {
				TraceID   string    `json:"trace_id"`
				CreatedAt time.Time `json:"created_at"`
			}
			if jerr := json.Unmarshal(line, &head); jerr != nil || head.TraceID == "" {
				slog.Warn("Skipping malformed trace line", "offset", offset)
			} else if _, dup := s.index[head.TraceID]; !dup {
				s.index[head.TraceID] = len(s.entries)
				s.entries = append(s.entries, jsonlEntry{offset: offset, createdAt: head.CreatedAt, traceID: head.TraceID})
			}
			offset += int64(len(line))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace log: %w", err)
		}
	}
	s.size = offset
	return nil
}

func (s *JSONLStore) Write(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode trace %s: %w", rec.TraceID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[rec.TraceID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.TraceID)
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("write trace %s: %w", rec.TraceID, err)
	}
	s.index[rec.TraceID] = len(s.entries)
	s.entries = append(s.entries, jsonlEntry{offset: s.size, createdAt: rec.CreatedAt, traceID: rec.TraceID})
	s.size += int64(len(line))
	return nil
}

func (s *JSONLStore) Get(ctx context.Context, traceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[traceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, traceID)
	}
	return s.readAt(s.entries[i].offset)
}

func (s *JSONLStore) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = normalizePage(limit, offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	order := make([]jsonlEntry, len(s.entries))
	copy(order, s.entries)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].createdAt.After(order[j].createdAt)
	})

	out := []Record{}
	if offset >= len(order) {
		return out, nil
	}
	end := min(offset+limit, len(order))
	for _, e := range order[offset:end] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.readAt(e.offset)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *JSONLStore) readAt(offset int64) (*Record, error) {
	line, err := bufio.NewReader(io.NewSectionReader(s.file, offset, s.size-offset)).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read trace log: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decode trace at offset %d: %w", offset, err)
	}
	return &rec, nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
