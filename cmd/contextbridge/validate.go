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
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kadirpekel/contextbridge/pkg/config"
	"github.com/kadirpekel/contextbridge/pkg/connector"
)

// ValidateCmd checks the config file without connecting to anything.
type ValidateCmd struct {
	Quiet bool `short:"q" help:"Only report errors."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if !c.Quiet {
		printSummary(os.Stdout, cli.Config, cfg)
	}
	return nil
}

func printSummary(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "Configuration is valid: %s\n\n", path)
	fmt.Fprintf(w, "Server:       %s\n", cfg.Server.Address())
	fmt.Fprintf(w, "Model:        %s (temperature %.2f)\n", cfg.LLM.Model, cfg.LLM.Temperature)
	fmt.Fprintf(w, "Embedder:     %s\n", cfg.Embedder.Type)
	fmt.Fprintf(w, "Vector store: %s\n", cfg.VectorStore.Type)
	fmt.Fprintf(w, "Traces:       %s\n", cfg.Traces.Backend)
	fmt.Fprintf(w, "Concurrency:  %d total, %d per source\n", cfg.Orchestrator.MaxConcurrency, cfg.Orchestrator.PerSourceLimit)
	fmt.Fprintf(w, "Timeouts:     %s per source, %s overall\n", cfg.Orchestrator.SourceTimeout, cfg.Orchestrator.OverallTimeout)

	fmt.Fprintf(w, "\nConnectors (%d):\n", len(cfg.Connectors))
	for _, spec := range cfg.Connectors {
		kind, _ := connector.ParseKind(spec.KindName())
		fmt.Fprintf(w, "  - %s (%s)\n", spec.Name, kind)
	}
	if len(cfg.Profiles.Inline) > 0 {
		fmt.Fprintf(w, "\nInline profiles (%d):\n", len(cfg.Profiles.Inline))
		ids := make([]string, 0, len(cfg.Profiles.Inline))
		for id := range cfg.Profiles.Inline {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  - %s: %v\n", id, cfg.Profiles.Inline[id].AllowedSources)
		}
	}
	if cfg.Profiles.Dir != "" {
		fmt.Fprintf(w, "Profile dir:  %s\n", cfg.Profiles.Dir)
	}
}
