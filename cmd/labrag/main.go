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

// Command labrag is the CLI for the lab RAG chat service.
//
// Usage:
//
//	labrag serve --config labrag.yaml
//	labrag ask "How many customers are in Germany?"
//	labrag ingest --recreate
//	labrag ingest-sql --tables Customers,Orders
//	labrag collection count lab_papers
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	labrag "github.com/alanlin8901/special-happiness"
	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/runtime"
)

// CLI defines the command-line interface.
type CLI struct {
	Version    VersionCmd    `cmd:"" help:"Show version information."`
	Serve      ServeCmd      `cmd:"" help:"Start the OpenAI-compatible chat server."`
	Ask        AskCmd        `cmd:"" help:"Answer one question from the command line."`
	Ingest     IngestCmd     `cmd:"" help:"Index the document directory into the papers collection."`
	IngestSQL  IngestSQLCmd  `cmd:"" name:"ingest-sql" help:"Index database rows into the SQL collection."`
	Collection CollectionCmd `cmd:"" help:"Inspect vector collections."`
	Validate   ValidateCmd   `cmd:"" help:"Validate the configuration and print the effective settings."`
	Schema     SchemaCmd     `cmd:"" help:"Print the JSON Schema of the configuration file."`

	Config    string `short:"c" help:"Path to config file (YAML or JSON)." type:"path"`
	EnvFile   string `name:"env-file" help:"Additional .env file to load." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	cleanup func() `kong:"-"`
}

// loadConfig reads the configuration and re-initializes the logger so the
// config file's logger section applies where no flag or variable overrides it.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}

	cleanup, err := initLogger(resolveLogSettings(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger, os.Getenv))
	if err != nil {
		return nil, err
	}
	cli.closeLog()
	cli.cleanup = cleanup

	if cli.Config != "" {
		slog.Info("Loaded configuration", "path", cli.Config)
	}
	return cfg, nil
}

func (cli *CLI) closeLog() {
	if cli.cleanup != nil {
		cli.cleanup()
		cli.cleanup = nil
	}
}

// newRuntime loads the configuration and builds the runtime.
func (cli *CLI) newRuntime(ctx context.Context, opts ...runtime.Option) (*runtime.Runtime, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, err
	}
	return cli.runtimeFor(ctx, cfg, opts...)
}

func (cli *CLI) runtimeFor(ctx context.Context, cfg *config.Config, opts ...runtime.Option) (*runtime.Runtime, error) {
	opts = append([]runtime.Option{runtime.WithVersion(labrag.Version)}, opts...)
	rt, err := runtime.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	return rt, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(labrag.VersionString())
	return nil
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("labrag"),
		kong.Description("Lab RAG chat service: a ReAct agent over papers and SQL data behind an OpenAI-compatible API"),
		kong.UsageOnError(),
	)

	if cli.EnvFile != "" {
		if err := config.LoadDotEnv(cli.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", cli.EnvFile, err)
			os.Exit(1)
		}
	}

	// Logger from flags and environment until a config file is loaded.
	cleanup, err := initLogger(resolveLogSettings(cli.LogLevel, cli.LogFile, cli.LogFormat, nil, os.Getenv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	cli.cleanup = cleanup

	err = ctx.Run(&cli)
	cli.closeLog()
	ctx.FatalIfErrorf(err)
}
