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

// Package server exposes the agent through an OpenAI-compatible chat API.
//
// Routes:
//
//	POST /v1/chat/completions  chat completion, optionally streamed as SSE
//	GET  /v1/models            the single advertised model
//	POST /api/chat             legacy chat and prompt shapes
//	GET  /health               liveness
//	GET  /metrics              Prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanlin8901/special-happiness/pkg/agent"
	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/utils"
)

// Answerer runs one question to completion. *agent.Agent implements it.
type Answerer interface {
	Run(ctx context.Context, question string) (agent.Result, error)
}

// HTTPServer serves the chat API.
type HTTPServer struct {
	serverCfg config.ServerConfig
	agent     Answerer
	metrics   *observability.Metrics
	metricsAt string
	counter   *utils.TokenCounter
	now       func() time.Time

	server *http.Server
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithMetrics records requests on m and serves it at the metrics path.
func WithMetrics(m *observability.Metrics) HTTPServerOption {
	return func(s *HTTPServer) {
		s.metrics = m
	}
}

// WithMetricsPath moves the metrics endpoint.
func WithMetricsPath(path string) HTTPServerOption {
	return func(s *HTTPServer) {
		if path != "" {
			s.metricsAt = path
		}
	}
}

// WithTokenCounter sets the counter used for the usage block.
func WithTokenCounter(tc *utils.TokenCounter) HTTPServerOption {
	return func(s *HTTPServer) {
		s.counter = tc
	}
}

// WithClock overrides the time source for created timestamps.
func WithClock(now func() time.Time) HTTPServerOption {
	return func(s *HTTPServer) {
		s.now = now
	}
}

// NewHTTPServer creates a server answering with a. cfg should have defaults
// applied.
func NewHTTPServer(cfg config.ServerConfig, a Answerer, opts ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{
		serverCfg: cfg,
		agent:     a,
		metricsAt: observability.DefaultMetricsPath,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokens returns the usage counter, loading the shared one on first use.
func (s *HTTPServer) tokens() *utils.TokenCounter {
	if s.counter == nil {
		return utils.SharedCounter()
	}
	return s.counter
}

// Handler returns the routed handler with the middleware chain applied.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	// Order: recover -> tracing -> logging -> metrics -> cors -> routes
	r.Use(middleware.Recoverer)
	r.Use(s.tracingMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, s.metricsAt, s.metrics.Handler())

	r.Get("/v1/models", s.handleModels)
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Post("/api/chat", s.handleLegacyChat)

	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.serverCfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.serverCfg.ReadTimeout,
		WriteTimeout: s.serverCfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting",
		"address", s.serverCfg.Address(),
		"model", s.serverCfg.ModelName)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown waits up to five seconds for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.serverCfg.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.Tracer(observability.ScopeServer).Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware wraps the writer with chi's WrapResponseWriter, which
// keeps http.Flusher available for SSE.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, routePattern(r), status, time.Since(start))
	})
}

// routePattern returns the matched chi pattern, or the raw path when no
// route matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
