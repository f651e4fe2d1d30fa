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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/httpclient"
)

const maxResponseBytes = 8 << 20

type RESTConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Headers   map[string]string `mapstructure:"headers"`
	Endpoints map[string]Entry  `mapstructure:"endpoints"`
	MaxRows   int               `mapstructure:"max_rows"`
}

// RESTConnector issues GET requests against a JSON API.
type RESTConnector struct {
	name    string
	baseURL string
	headers map[string]string
	schema  Schema
	maxRows int
	client  *httpclient.Client
}

func NewREST(name string, cfg RESTConfig) (*RESTConnector, error) {
	if cfg.BaseURL == "" {
		return nil, newConfigError(name, "base_url is required", nil)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, newConfigError(name, fmt.Sprintf("invalid base_url %q", cfg.BaseURL), err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}

	schema := Schema{}
	for route, e := range cfg.Endpoints {
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
		if e.Method == "" {
			e.Method = http.MethodGet
		}
		schema[route] = e
	}

	return &RESTConnector{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		schema:  schema,
		maxRows: cfg.MaxRows,
		client: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithMaxRetries(1),
		),
	}, nil
}

func (c *RESTConnector) Name() string   { return c.name }
func (c *RESTConnector) Kind() Kind     { return KindParameterized }
func (c *RESTConnector) Schema() Schema { return c.schema }
func (c *RESTConnector) Close() error   { return nil }

// Execute performs the GET call described by query and decodes the JSON
// response into rows. An array of objects yields one row per element, an
// object yields one row (or the rows of its first array-of-objects field),
// and any other body yields a single {"response": body} row.
func (c *RESTConnector) Execute(ctx context.Context, query string) ([]Row, error) {
	call := NormalizeCall(query)
	if !IsReadOnly(KindParameterized, call) {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: ErrNotReadOnly}
	}
	path := strings.TrimSpace(strings.TrimPrefix(call, "GET"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExecutionError{Source: c.name, Query: query, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	rows := decodeRows(body)
	if len(rows) > c.maxRows {
		rows = rows[:c.maxRows]
	}
	return rows, nil
}

func decodeRows(body []byte) []Row {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return []Row{{"response": strings.TrimSpace(string(body))}}
	}

	switch v := payload.(type) {
	case []any:
		return rowsFromArray(v)
	case map[string]any:
		if arr := firstObjectArray(v); arr != nil {
			return rowsFromArray(arr)
		}
		return []Row{Row(v)}
	case nil:
		return nil
	default:
		return []Row{{"response": fmt.Sprint(v)}}
	}
}

func rowsFromArray(items []any) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			rows = append(rows, Row(obj))
		} else {
			rows = append(rows, Row{"value": item})
		}
	}
	return rows
}

// firstObjectArray finds an envelope field such as {"data": [{...}]}.
func firstObjectArray(obj map[string]any) []any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		arr, ok := obj[k].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		allObjects := true
		for _, item := range arr {
			if _, ok := item.(map[string]any); !ok {
				allObjects = false
				break
			}
		}
		if allObjects {
			return arr
		}
	}
	return nil
}
