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


// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/config"
	"github.com/kadirpekel/contextbridge/pkg/observability"
	"github.com/kadirpekel/contextbridge/pkg/runtime"
)

// Backend answers the API's requests. *runtime.Runtime implements it.
type Backend interface {
	Query(ctx context.Context, q runtime.Query) (*runtime.Answer, error)
	Schemas() map[string]runtime.SourceSchema
	Traces() audit.Store
	Metrics() *observability.Metrics
}

var _ Backend = (*runtime.Runtime)(nil)

type Server struct {
	cfg     config.ServerConfig
	backend atomic.Pointer[backendHolder]
	router  chi.Router
}

type backendHolder struct {
	Backend
}

func New(cfg config.ServerConfig, b Backend) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg}
	s.backend.Store(&backendHolder{b})
	s.router = s.routes()
	return s
}

// Swap installs b for subsequent requests and returns the previous
// backend. In-flight requests finish on the backend they started with.
func (s *Server) Swap(b Backend) Backend {
	return s.backend.Swap(&backendHolder{b}).Backend
}

func (s *Server) current() Backend {
	return s.backend.Load().Backend
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// Order: request id -> recover -> logging -> metrics -> cors
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/schema", s.handleSchema)
	r.Post("/query", s.handleQuery)
	r.Get("/trace/{id}", s.handleTrace)
	r.Get("/traces", s.handleTraces)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.current().Metrics().Handler().ServeHTTP(w, r)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
