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


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kadirpekel/contextbridge/pkg/config"
	"github.com/kadirpekel/contextbridge/pkg/runtime"
	"github.com/kadirpekel/contextbridge/pkg/server"
)

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Host  string `help:"Override server.host."`
	Port  int    `help:"Override server.port."`
	Watch bool   `help:"Reload the config file on change and swap in a new engine."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	srv := server.New(cfg.Server, rt)
	printStartup(cfg)

	if c.Watch {
		loader, err := config.NewLoader(cli.Config, config.WithOnChange(func(next *config.Config) {
			reload(ctx, srv, next)
		}))
		if err != nil {
			_ = rt.Close()
			return err
		}
		go func() {
			if err := loader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Config watcher stopped", "error", err)
			}
		}()
	}

	err = srv.ListenAndServe(ctx)

	// Close whichever engine is installed last.
	closeBackend(srv.Swap(nil))
	return err
}

func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port > 0 {
		cfg.Server.Port = c.Port
	}
}

// reload builds an engine from next and installs it. On failure the
// running engine stays in place. Server address changes need a restart.
func reload(ctx context.Context, srv *server.Server, next *config.Config) {
	rt, err := runtime.New(ctx, next)
	if err != nil {
		slog.Error("Config reload rejected, keeping current engine", "error", err)
		return
	}
	prev := srv.Swap(rt)
	slog.Info("Config reloaded", "connectors", len(next.Connectors))
	closeBackend(prev)
}

func closeBackend(b server.Backend) {
	rt, ok := b.(*runtime.Runtime)
	if !ok || rt == nil {
		return
	}
	if err := rt.Close(); err != nil {
		slog.Warn("Engine shutdown incomplete", "error", err)
	}
}

func printStartup(cfg *config.Config) {
	fmt.Printf("contextbridge listening on %s\n", cfg.Server.Address())
	names := cfg.ConnectorNames()
	sort.Strings(names)
	fmt.Printf("  connectors: %d %v\n", len(names), names)
	fmt.Printf("  model:      %s (%s)\n", cfg.LLM.Model, cfg.Ollama.BaseURL)
	fmt.Printf("  traces:     %s\n", cfg.Traces.Backend)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("  metrics:    http://%s/metrics\n", cfg.Server.Address())
	}
}
