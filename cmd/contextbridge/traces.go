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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kadirpekel/contextbridge/pkg/audit"
	"github.com/kadirpekel/contextbridge/pkg/dbpool"
)

// TracesCmd reads the trace store directly.
type TracesCmd struct {
	List TracesListCmd `cmd:"" default:"withargs" help:"List recent traces, newest first."`
	Show TracesShowCmd `cmd:"" help:"Show one trace as JSON."`
}

type TracesListCmd struct {
	Limit  int `help:"Maximum number of traces." default:"20"`
	Offset int `help:"Number of traces to skip."`
}

func (c *TracesListCmd) Run(cli *CLI) error {
	if c.Limit < 0 || c.Offset < 0 {
		return fmt.Errorf("limit and offset must be non-negative")
	}
	return withTraceStore(cli, func(ctx context.Context, store audit.Store) error {
		records, err := store.List(ctx, c.Limit, c.Offset)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No traces recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TRACE\tCREATED\tPROFILE\tMS\tQUESTION")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				rec.TraceID, rec.CreatedAt.Local().Format(time.DateTime), rec.Profile, rec.ElapsedMS, truncate(rec.Question, 60))
		}
		return w.Flush()
	})
}

type TracesShowCmd struct {
	ID string `arg:"" help:"Trace id."`
}

func (c *TracesShowCmd) Run(cli *CLI) error {
	return withTraceStore(cli, func(ctx context.Context, store audit.Store) error {
		rec, err := store.Get(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("trace %s: %w", c.ID, err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	})
}

func withTraceStore(cli *CLI, fn func(context.Context, audit.Store) error) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	return openTraceStore(ctx, cfg.Traces, fn)
}

// openTraceStore opens the configured store without building connectors,
// models or indexes.
func openTraceStore(ctx context.Context, cfg audit.Config, fn func(context.Context, audit.Store) error) error {
	pool := dbpool.New()
	defer pool.Close()

	store, err := audit.New(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
