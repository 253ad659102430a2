// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runtime builds the process-wide backends once and hands them to the
// tools, the agent, the ingestion jobs and the HTTP server.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanlin8901/special-happiness/pkg/agent"
	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/ingest"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/server"
	"github.com/alanlin8901/special-happiness/pkg/tools"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// Runtime owns the shared clients. Everything it hands out is safe for
// concurrent use.
type Runtime struct {
	config *config.Config

	metrics        *observability.Metrics
	shutdownTracer func(context.Context) error

	dbPool   *config.DBPool
	db       *sql.DB
	llm      llms.LLM
	embedder embedder.Embedder
	store    vector.Provider
	tools    *tools.Registry
	agent    *agent.Agent
	splitter *ingest.Splitter
	pipeline *ingest.Pipeline
}

type options struct {
	version         string
	llmFactory      LLMFactory
	embedderFactory EmbedderFactory
	storeFactory    StoreFactory
	skipDatabase    bool
}

// Option customizes New.
type Option func(*options)

// WithVersion reports version as the tracer's service version.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithLLMFactory replaces DefaultLLMFactory.
func WithLLMFactory(f LLMFactory) Option {
	return func(o *options) {
		o.llmFactory = f
	}
}

// WithEmbedderFactory replaces DefaultEmbedderFactory.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(o *options) {
		o.embedderFactory = f
	}
}

// WithStoreFactory replaces DefaultStoreFactory.
func WithStoreFactory(f StoreFactory) Option {
	return func(o *options) {
		o.storeFactory = f
	}
}

// WithoutDatabase skips connecting to the configured database. Commands that
// only touch the vector store use it.
func WithoutDatabase() Option {
	return func(o *options) {
		o.skipDatabase = true
	}
}

// New builds every backend from cfg. cfg should have defaults applied and be
// validated. An unreachable database is logged and the SQL tools are left
// out; every other failure is returned.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	o := options{
		version:         "dev",
		llmFactory:      DefaultLLMFactory,
		embedderFactory: DefaultEmbedderFactory,
		storeFactory:    DefaultStoreFactory,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{config: cfg, dbPool: config.NewDBPool()}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	if cfg.Observability.Metrics.Enabled {
		if r.metrics, err = observability.NewMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}
	if r.shutdownTracer, err = observability.InitTracer(ctx, cfg.Observability.Tracing, o.version); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Database != nil && !o.skipDatabase {
		db, dbErr := r.dbPool.Get(ctx, cfg.Database)
		if dbErr != nil {
			slog.Warn("Database unavailable, SQL tools disabled", "driver", cfg.Database.Driver, "error", dbErr)
		} else {
			r.db = db
		}
	}

	if r.llm, err = o.llmFactory(cfg.LLM, r.metrics); err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	if r.embedder, err = o.embedderFactory(cfg.Embedder); err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if r.store, err = o.storeFactory(&cfg.VectorStore); err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	r.tools, err = tools.NewDefaultRegistry(tools.Deps{
		Config:   cfg,
		LLM:      r.llm,
		Embedder: r.embedder,
		Store:    r.store,
		DB:       r.db,
		Metrics:  r.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tools: %w", err)
	}

	if r.agent, err = agent.New(r.llm, r.tools, cfg.Agent, agent.WithMetrics(r.metrics)); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	r.splitter = ingest.NewSplitter(cfg.Ingest, ingest.WithSplitterMetrics(r.metrics))
	r.pipeline = ingest.NewPipeline(r.embedder, r.store,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithPipelineMetrics(r.metrics))

	slog.Info("Runtime ready",
		"llm", cfg.LLM.Model,
		"embedder", cfg.Embedder.Model,
		"vector_store", r.store.Name(),
		"database", r.db != nil,
		"tools", r.tools.Names())
	return r, nil
}

func (r *Runtime) Config() *config.Config {
	return r.config
}

func (r *Runtime) Agent() *agent.Agent {
	return r.agent
}

func (r *Runtime) Tools() *tools.Registry {
	return r.tools
}

func (r *Runtime) Store() vector.Provider {
	return r.store
}

func (r *Runtime) Metrics() *observability.Metrics {
	return r.metrics
}

// DB returns the database handle, or nil when no database is configured or
// it could not be reached.
func (r *Runtime) DB() *sql.DB {
	return r.db
}

// HTTPServer returns a chat server answering with the runtime's agent.
func (r *Runtime) HTTPServer() *server.HTTPServer {
	opts := []server.HTTPServerOption{server.WithMetrics(r.metrics)}
	if r.metrics != nil {
		opts = append(opts, server.WithMetricsPath(r.config.Observability.Metrics.Endpoint))
	}
	return server.NewHTTPServer(r.config.Server, r.agent, opts...)
}

// IngestDocuments splits the configured source directory and indexes it into
// the papers collection.
func (r *Runtime) IngestDocuments(ctx context.Context, recreate bool) (int, error) {
	return r.pipeline.IndexDirectory(ctx, r.splitter, r.config.Ingest.SourceDir, ingest.IndexOptions{
		Collection: r.config.Collections.Papers,
		Recreate:   recreate,
	})
}

// IngestSQL indexes database rows into the SQL collection.
func (r *Runtime) IngestSQL(ctx context.Context, recreate bool) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("no database available for SQL ingestion")
	}
	src := ingest.SQLSource{
		DB:       r.db,
		Dialect:  r.config.Database.Dialect(),
		Tables:   r.config.Ingest.Tables,
		RowLimit: r.config.Ingest.RowLimit,
	}
	docs, err := src.Documents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read database rows: %w", err)
	}
	return r.pipeline.Index(ctx, docs, ingest.IndexOptions{
		Collection: r.config.Collections.SQL,
		Recreate:   recreate,
	})
}

// Watch re-ingests the source directory whenever it changes, until ctx is
// done. Later runs never recreate the collection.
func (r *Runtime) Watch(ctx context.Context) error {
	w := ingest.NewWatcher(r.config.Ingest.SourceDir, r.config.Ingest.Extensions, r.config.Ingest.WatchDebounce)
	return w.Run(ctx, func(ctx context.Context) error {
		n, err := r.IngestDocuments(ctx, false)
		if err != nil {
			return err
		}
		slog.Info("Re-ingested documents", "points", n)
		return nil
	})
}

// Close releases every backend, returning the joined errors.
func (r *Runtime) Close() error {
	var errs []error

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vector store cleanup: %w", err))
		}
	}
	if r.dbPool != nil {
		if err := r.dbPool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database cleanup: %w", err))
		}
	}
	if r.shutdownTracer != nil {
		if err := r.shutdownTracer(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if err := r.metrics.Shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}

	for _, err := range errs {
		slog.Warn("Runtime cleanup error", "error", err)
	}
	return errors.Join(errs...)
}
