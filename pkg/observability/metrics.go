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

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records labrag's instruments. A nil *Metrics is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	agentRuns       metric.Int64Counter
	agentDuration   metric.Float64Histogram
	agentIterations metric.Int64Histogram
	toolCalls       metric.Int64Counter
	toolDuration    metric.Float64Histogram
	llmCalls        metric.Int64Counter
	llmDuration     metric.Float64Histogram
	llmTokens       metric.Int64Counter
	ingestChunks    metric.Int64Counter
	ingestFailures  metric.Int64Counter
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
}

// NewMetrics builds a meter provider backed by a private Prometheus registry.
func NewMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(DefaultServiceName)

	m := &Metrics{provider: provider, registry: registry}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.agentRuns, "labrag_agent_runs_total", "Agent runs by terminal status"},
		{&m.toolCalls, "labrag_tool_calls_total", "Tool invocations by tool and outcome"},
		{&m.llmCalls, "labrag_llm_calls_total", "LLM completion calls"},
		{&m.llmTokens, "labrag_llm_tokens_total", "Tokens reported by the LLM backend"},
		{&m.ingestChunks, "labrag_ingest_chunks_total", "Chunks upserted into vector collections"},
		{&m.ingestFailures, "labrag_ingest_file_failures_total", "Files that produced no chunks because loading failed"},
		{&m.httpRequests, "labrag_http_requests_total", "HTTP requests by route and status"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.agentDuration, "labrag_agent_run_duration_seconds", "Agent run duration"},
		{&m.toolDuration, "labrag_tool_duration_seconds", "Tool invocation duration"},
		{&m.llmDuration, "labrag_llm_call_duration_seconds", "LLM call duration"},
		{&m.httpDuration, "labrag_http_request_duration_seconds", "HTTP request duration"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", h.name, err)
		}
	}

	if m.agentIterations, err = meter.Int64Histogram("labrag_agent_iterations",
		metric.WithDescription("Reasoning iterations per agent run")); err != nil {
		return nil, fmt.Errorf("failed to create labrag_agent_iterations: %w", err)
	}

	return m, nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAgentRun records one finished agent run.
func (m *Metrics) RecordAgentRun(ctx context.Context, status string, iterations int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.agentRuns.Add(ctx, 1, attrs)
	m.agentDuration.Record(ctx, d.Seconds(), attrs)
	m.agentIterations.Record(ctx, int64(iterations), attrs)
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("outcome", outcome))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordLLMCall records one completion call.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, promptTokens, completionTokens int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("model", model), attribute.String("outcome", outcome))
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, d.Seconds(), attrs)
	m.llmTokens.Add(ctx, int64(promptTokens), metric.WithAttributes(attribute.String("model", model), attribute.String("kind", "prompt")))
	m.llmTokens.Add(ctx, int64(completionTokens), metric.WithAttributes(attribute.String("model", model), attribute.String("kind", "completion")))
}

// RecordIngest records chunks written to a collection.
func (m *Metrics) RecordIngest(ctx context.Context, collection string, chunks int) {
	if m == nil {
		return
	}
	m.ingestChunks.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordIngestFailure records a file that failed to load.
func (m *Metrics) RecordIngestFailure(ctx context.Context, ext string) {
	if m == nil {
		return
	}
	m.ingestFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("extension", ext)))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
