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


// Command contextbridge is the CLI for the contextbridge engine.
//
// Usage:
//
//	contextbridge serve --config contextbridge.yaml
//	contextbridge ask --config contextbridge.yaml --profile finance "Show unpaid invoices for ACME Corp"
//	contextbridge traces list --limit 10
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/contextbridge"
	"github.com/kadirpekel/contextbridge/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API."`
	Ask      AskCmd      `cmd:"" help:"Answer one question from the command line."`
	Schema   SchemaCmd   `cmd:"" help:"Print the schema of every configured connector."`
	Traces   TracesCmd   `cmd:"" help:"Inspect recorded traces."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"contextbridge.yaml" env:"CONTEXTBRIDGE_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	logCleanup func() `kong:"-"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(contextbridge.GetVersion())
	return nil
}

// loadConfig reads the config file and initializes logging from flags,
// environment and the file's logger section, in that order of priority.
func (cli *CLI) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, cli.Config)
	if err != nil {
		return nil, err
	}
	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger)
	if err != nil {
		return nil, err
	}
	cli.logCleanup = cleanup
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("contextbridge"),
		kong.Description("contextbridge - cited context assembly over SQL, REST and document sources"),
		kong.UsageOnError(),
	)

	// Logging until a config file is read.
	if _, err := initLogger(cli.LogLevel, "", cli.LogFormat, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err := kctx.Run(&cli)
	if cli.logCleanup != nil {
		cli.logCleanup()
	}
	kctx.FatalIfErrorf(err)
}
