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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var defaultExtensions = []string{".txt", ".md", ".pdf", ".csv", ".docx", ".xlsx"}

type FilesConfig struct {
	RootDir       string   `mapstructure:"root_dir"`
	Extensions    []string `mapstructure:"extensions"`
	MaxChunkChars int      `mapstructure:"max_chunk_chars"`
}

// FilesConnector is a passive connector over a directory of documents. The
// corpus is read once on first ListAll and cached for the process lifetime.
type FilesConnector struct {
	name       string
	root       string
	extensions map[string]bool
	maxChunk   int

	mu     sync.Mutex
	loaded bool
	rows   []Row
}

func NewFiles(name string, cfg FilesConfig) (*FilesConnector, error) {
	if cfg.RootDir == "" {
		return nil, newConfigError(name, "root_dir is required", nil)
	}
	info, err := os.Stat(cfg.RootDir)
	if err != nil {
		return nil, newConfigError(name, "cannot access root_dir", err)
	}
	if !info.IsDir() {
		return nil, newConfigError(name, fmt.Sprintf("root_dir %q is not a directory", cfg.RootDir), nil)
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}

	maxChunk := cfg.MaxChunkChars
	if maxChunk <= 0 {
		maxChunk = 800
	}

	return &FilesConnector{name: name, root: cfg.RootDir, extensions: set, maxChunk: maxChunk}, nil
}

func (c *FilesConnector) Name() string { return c.name }
func (c *FilesConnector) Kind() Kind   { return KindDocument }
func (c *FilesConnector) Close() error { return nil }

func (c *FilesConnector) Schema() Schema {
	exts := make([]string, 0, len(c.extensions))
	for ext := range c.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return Schema{
		filepath.Base(c.root): Entry{
			Description: fmt.Sprintf("static documents (%s)", strings.Join(exts, " ")),
		},
	}
}

// ListAll returns one row per chunk: {file, loc, text}. Files that fail to
// parse contribute nothing.
func (c *FilesConnector) ListAll(ctx context.Context) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.rows, nil
	}

	var rows []Row
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", "source", c.name, "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !c.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		chunks, err := extractChunks(path, c.maxChunk)
		if err != nil {
			slog.Warn("Skipping document", "source", c.name, "file", path, "error", err)
			return nil
		}

		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(path)

		for _, ch := range chunks {
			rows = append(rows, Row{
				"file": rel,
				"loc":  ch.loc,
				"text": fmt.Sprintf("[%s] %s • %s • %s", c.name, base, ch.loc, ch.text),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Document corpus loaded", "source", c.name, "chunks", len(rows))
	c.rows = rows
	c.loaded = true
	return rows, nil
}
