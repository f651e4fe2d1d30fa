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
	"os"

	"github.com/kadirpekel/contextbridge/pkg/connector"
	"github.com/kadirpekel/contextbridge/pkg/dbpool"
	"github.com/kadirpekel/contextbridge/pkg/runtime"
)

// SchemaCmd prints connector schemas without loading models or indexes.
type SchemaCmd struct {
	Text bool `help:"Print the prompt text form instead of JSON."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}

	pool := dbpool.New()
	defer pool.Close()

	set, err := connector.NewSetFromSpecs(ctx, cfg.Connectors, pool)
	if err != nil {
		return err
	}
	defer set.Close()

	if c.Text {
		for _, name := range set.Names() {
			conn, _ := set.Get(name)
			fmt.Printf("# %s (%s)\n%s\n\n", name, conn.Kind(), conn.Schema().Text(conn.Kind()))
		}
		return nil
	}

	out := make(map[string]runtime.SourceSchema, set.Len())
	for name, schema := range set.Schemas() {
		conn, _ := set.Get(name)
		out[name] = runtime.SourceSchema{Kind: conn.Kind(), Schema: schema}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
