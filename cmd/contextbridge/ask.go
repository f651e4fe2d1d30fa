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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kadirpekel/contextbridge/pkg/runtime"
)

// AskCmd answers one question without starting the server.
type AskCmd struct {
	Question []string `arg:"" help:"Question to answer."`
	Profile  string   `short:"p" help:"Profile id."`
	User     string   `help:"User recorded in the trace."`
	Scopes   []string `help:"Scopes recorded in the trace."`
	JSON     bool     `help:"Print the full answer as JSON."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer rt.Close()

	answer, err := rt.Query(ctx, runtime.Query{
		Question: strings.Join(c.Question, " "),
		Profile:  c.Profile,
		User:     c.User,
		Scopes:   c.Scopes,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	printAnswer(os.Stdout, answer)
	return nil
}

func printAnswer(w io.Writer, a *runtime.Answer) {
	fmt.Fprintln(w, a.Answer)
	if len(a.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, c := range a.Citations {
			if c.Document {
				fmt.Fprintf(w, "  - %s: %s (%s)\n", c.Source, c.File, c.Loc)
			} else {
				fmt.Fprintf(w, "  - %s: %s\n", c.Source, c.Query)
			}
		}
	}
	if len(a.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range a.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	fmt.Fprintf(w, "\ntrace %s (%d ms)\n", a.TraceID, a.ElapsedMS)
}
