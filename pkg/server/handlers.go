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


package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/runtime"
)

type queryRequest struct {
	Profile    profileField     `json:"profile"`
	Query      string           `json:"query"`
	User       string           `json:"user,omitempty"`
	Scopes     []string         `json:"scopes,omitempty"`
	Connectors []connector.Spec `json:"connectors,omitempty"`
}

// profileField accepts a profile id or a list of ids; a list selects its
// first non-empty entry.
type profileField string

func (p *profileField) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*p = profileField(strings.TrimSpace(one))
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("profile must be a string or a list of strings")
	}
	for _, id := range many {
		if id = strings.TrimSpace(id); id != "" {
			*p = profileField(id)
			return nil
		}
	}
	*p = ""
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Detail: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current().Schemas())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	// An empty connectors list still means "no override".
	var override []connector.Spec
	if len(req.Connectors) > 0 {
		override = req.Connectors
	}

	ans, err := s.current().Query(r.Context(), runtime.Query{
		Question:   req.Query,
		Profile:    string(req.Profile),
		User:       req.User,
		Scopes:     req.Scopes,
		Connectors: override,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ans)
	case runtime.IsClientError(err):
		writeError(w, http.StatusBadRequest, "%v", err)
	case runtime.IsProfileError(err):
		slog.Error("Profile lookup failed", "profile", req.Profile, "error", err)
		writeError(w, http.StatusInternalServerError, "profile lookup failed: %v", err)
	default:
		slog.Error("Query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed: %v", err)
	}
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.current().Traces().Get(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Trace not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read trace: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", audit.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	recs, err := s.current().Traces().List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list traces: %v", err)
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
