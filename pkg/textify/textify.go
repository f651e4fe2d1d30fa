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

// Package textify turns structured rows into retrievable text.
package textify

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// Separator joins field=value pairs within one line.
const Separator = " • "

// ToLines renders each row as "[source] k1=v1 • k2=v2". Keys are sorted and
// nil or empty values are skipped, so identical rows always produce
// identical lines. Rows with no non-empty values produce no line.
func ToLines(rows []connector.Row, source string) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		keys := sortedKeys(row)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v, ok := FormatValue(row[k])
			if !ok {
				continue
			}
			parts = append(parts, k+"="+v)
		}
		if len(parts) == 0 {
			continue
		}
		lines = append(lines, "["+source+"] "+strings.Join(parts, Separator))
	}
	return lines
}

// FormatValue renders a scalar for textification. Composite values are
// JSON-encoded. The boolean result is false for nil and empty values.
func FormatValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// CompactRows renders up to maxRows rows as a CSV-like block for prompts.
// Columns are the sorted union of keys; values longer than maxValLen are
// truncated with "...".
func CompactRows(rows []connector.Row, maxRows, maxValLen int) string {
	if len(rows) == 0 {
		return ""
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	seen := map[string]bool{}
	var headers []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(headers)
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			v, _ := FormatValue(row[h])
			v = strings.ReplaceAll(v, "\n", " ")
			if maxValLen > 3 && len([]rune(v)) > maxValLen {
				v = string([]rune(v)[:maxValLen-3]) + "..."
			}
			record[i] = v
		}
		_ = w.Write(record)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(row connector.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
