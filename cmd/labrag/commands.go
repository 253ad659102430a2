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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/runtime"
)

// ServeCmd starts the chat server.
type ServeCmd struct {
	Host        string `help:"Bind address (overrides server.host)."`
	Port        int    `help:"Port to listen on (overrides server.port)."`
	ModelName   string `name:"model-name" help:"Model id advertised by /v1/models."`
	StrictModel bool   `name:"strict-model" help:"Answer requests naming another model with an error message."`
	Ingest      bool   `help:"Index the document directory before serving."`
}

func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.ModelName != "" {
		cfg.Server.ModelName = c.ModelName
	}
	if c.StrictModel {
		cfg.Server.StrictModel = true
	}
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server settings: %w", err)
	}

	rt, err := cli.runtimeFor(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.Ingest {
		n, err := rt.IngestDocuments(ctx, cfg.Ingest.Recreate)
		if err != nil {
			slog.Warn("Startup ingestion failed, serving the existing collection", "error", err)
		} else {
			slog.Info("Startup ingestion finished", "points", n)
		}
	}

	addr := cfg.Server.Address()
	fmt.Printf("\nlabrag server ready\n")
	fmt.Printf("   Chat:        http://%s/v1/chat/completions\n", addr)
	fmt.Printf("   Models:      http://%s/v1/models\n", addr)
	fmt.Printf("   Legacy:      http://%s/api/chat\n", addr)
	fmt.Printf("   Health:      http://%s/health\n", addr)
	if rt.Metrics() != nil {
		fmt.Printf("   Metrics:     http://%s%s\n", addr, cfg.Observability.Metrics.Endpoint)
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	fmt.Printf("   Model:       %s (LLM %s)\n", cfg.Server.ModelName, cfg.LLM.Model)
	fmt.Printf("   Tools:       %s\n", strings.Join(rt.Tools().Names(), ", "))
	fmt.Println("\nPress Ctrl+C to stop")

	return rt.HTTPServer().Start(ctx)
}

// AskCmd answers one question.
type AskCmd struct {
	Question []string `arg:"" help:"The question."`
	Steps    bool     `help:"Print the reasoning transcript before the answer."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return c.ask(ctx, rt, os.Stdout)
}

func (c *AskCmd) ask(ctx context.Context, rt *runtime.Runtime, out io.Writer) error {
	question := strings.TrimSpace(strings.Join(c.Question, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	res, err := rt.Agent().Run(ctx, question)
	slog.Debug("Reasoning transcript", "status", res.Status, "iterations", res.Iterations, "transcript", res.Transcript.String())
	if c.Steps && res.Transcript != nil {
		fmt.Fprintln(out, res.Transcript.String())
	}
	fmt.Fprintln(out, res.Answer)
	return err
}

// IngestCmd indexes the document directory.
type IngestCmd struct {
	Dir      string `help:"Source directory (overrides ingest.source_dir)." type:"path"`
	Recreate bool   `help:"Drop and recreate the collection first."`
	Watch    bool   `help:"Keep running and re-index when the directory changes."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Dir != "" {
		cfg.Ingest.SourceDir = c.Dir
	}

	rt, err := cli.runtimeFor(ctx, cfg, runtime.WithoutDatabase())
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.IngestDocuments(ctx, c.Recreate || cfg.Ingest.Recreate)
	if err != nil {
		if !c.Watch {
			return err
		}
		slog.Warn("Initial ingestion failed, waiting for changes", "error", err)
	} else {
		fmt.Printf("Indexed %d chunks from %s into %s\n", n, cfg.Ingest.SourceDir, cfg.Collections.Papers)
	}

	if !c.Watch {
		return nil
	}
	return rt.Watch(ctx)
}

// IngestSQLCmd indexes database rows.
type IngestSQLCmd struct {
	Tables   []string `help:"Tables to read (overrides ingest.tables)." sep:","`
	RowLimit int      `name:"row-limit" help:"Maximum rows per table (0 = all)."`
	Recreate bool     `help:"Drop and recreate the collection first."`
}

func (c *IngestSQLCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database == nil {
		return fmt.Errorf("no database configured (set database in the config file or MSSQL_* variables)")
	}
	if len(c.Tables) > 0 {
		cfg.Ingest.Tables = c.Tables
	}
	if c.RowLimit > 0 {
		cfg.Ingest.RowLimit = c.RowLimit
	}

	rt, err := cli.runtimeFor(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.IngestSQL(ctx, c.Recreate)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d rows into %s\n", n, cfg.Collections.SQL)
	return nil
}

// CollectionCmd groups collection inspection commands.
type CollectionCmd struct {
	Count CollectionCountCmd `cmd:"" help:"Print the number of points in a collection."`
}

// CollectionCountCmd prints a collection's point count.
type CollectionCountCmd struct {
	Name string `arg:"" optional:"" help:"Collection name (defaults to the papers collection)."`
}

func (c *CollectionCountCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.newRuntime(ctx, runtime.WithoutDatabase())
	if err != nil {
		return err
	}
	defer rt.Close()

	name := c.Name
	if name == "" {
		name = rt.Config().Collections.Papers
	}
	n, err := rt.Store().Count(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", name, err)
	}
	fmt.Printf("%s: %d\n", name, n)
	return nil
}

// ValidateCmd checks the configuration.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	printSummary(os.Stdout, cfg)
	return nil
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration is valid")
	fmt.Fprintf(w, "   Server:       %s (model %s)\n", cfg.Server.Address(), cfg.Server.ModelName)
	fmt.Fprintf(w, "   LLM:          %s @ %s\n", cfg.LLM.Model, cfg.LLM.BaseURL)
	fmt.Fprintf(w, "   Embedder:     %s (dim %d)\n", cfg.Embedder.Model, cfg.Embedder.Dimension)
	fmt.Fprintf(w, "   Vector store: %s\n", cfg.VectorStore.Type)
	fmt.Fprintf(w, "   Collections:  %s, %s\n", cfg.Collections.Papers, cfg.Collections.SQL)
	if cfg.Database != nil {
		fmt.Fprintf(w, "   Database:     %s %s\n", cfg.Database.Driver, cfg.Database.Database)
	} else {
		fmt.Fprintln(w, "   Database:     none (SQL tools disabled)")
	}
	fmt.Fprintf(w, "   Ingest:       %s %v (chunk %d/%d)\n", cfg.Ingest.SourceDir, cfg.Ingest.Extensions, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	fmt.Fprintf(w, "   Agent:        max %d iterations\n", cfg.Agent.MaxIterations)
}
