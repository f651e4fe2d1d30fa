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
	"net/url"
	"regexp"
	"strings"
)

var (
	selectPattern = regexp.MustCompile(`(?i)^\s*select\b`)
	getPattern    = regexp.MustCompile(`^GET\s+/\S*$`)
)

// IsReadOnly reports whether query has the read-only shape for kind: a single
// statement with a leading SELECT for tabular sources, a "GET /path" line for
// parameterized sources. Document sources are never queried.
func IsReadOnly(kind Kind, query string) bool {
	switch kind {
	case KindTabular:
		return selectPattern.MatchString(query) && singleStatement(query)
	case KindParameterized:
		return getPattern.MatchString(strings.TrimSpace(query))
	default:
		return false
	}
}

// singleStatement rejects "SELECT ...; DROP ..." style input. Semicolons
// inside quoted literals are ignored.
func singleStatement(query string) bool {
	var quote rune
	for i, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return strings.TrimSpace(strings.TrimRight(query[i:], "; \t\r\n")) == ""
		}
	}
	return true
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeCall rewrites a mildly malformed API call line into the canonical
// "GET /path?query" form: a missing method or leading slash is added and the
// query string is re-encoded. Lines naming any other method are returned
// unchanged so that validation rejects them.
func NormalizeCall(line string) string {
	line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
	if line == "" {
		return ""
	}

	method, rest, found := strings.Cut(line, " ")
	upper := strings.ToUpper(method)
	switch {
	case upper == "GET" && found:
		rest = strings.TrimSpace(rest)
	case httpMethods[upper]:
		return line
	default:
		rest = line
	}

	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}

	u, err := url.Parse(rest)
	if err != nil {
		return "GET " + rest
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return "GET " + u.RequestURI()
}
