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

package llms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/ollama"
)

// OllamaLLM calls Ollama's /api/generate endpoint without streaming.
type OllamaLLM struct {
	client  *ollama.Client
	config  config.LLMConfig
	metrics *observability.Metrics
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	// Temperature is a pointer so an explicit 0 is sent.
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// OllamaOption customizes an OllamaLLM.
type OllamaOption func(*OllamaLLM)

// WithMetrics records each call on m.
func WithMetrics(m *observability.Metrics) OllamaOption {
	return func(l *OllamaLLM) {
		l.metrics = m
	}
}

// NewOllamaLLM creates a client from cfg. cfg should have defaults applied.
func NewOllamaLLM(cfg config.LLMConfig, opts ...OllamaOption) *OllamaLLM {
	l := &OllamaLLM{
		client: ollama.NewClient(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries),
		config: cfg,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Model returns the configured model name.
func (l *OllamaLLM) Model() string {
	return l.config.Model
}

// Generate runs one completion.
func (l *OllamaLLM) Generate(ctx context.Context, req Request) (resp Response, err error) {
	start := time.Now()

	ctx, span := observability.Tracer(observability.ScopeLLM).Start(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", l.config.Model),
			attribute.String("llm.provider", "ollama"),
			attribute.Int("llm.prompt_chars", len(req.Prompt)),
		),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", resp.PromptTokens),
			attribute.Int("llm.completion_tokens", resp.CompletionTokens),
		)
		observability.EndSpan(span, err)
		l.metrics.RecordLLMCall(ctx, l.config.Model, resp.PromptTokens, resp.CompletionTokens, time.Since(start), err)
	}()

	body := ollamaGenerateRequest{
		Model:  l.config.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: l.config.Temperature,
			NumCtx:      l.config.ContextWindow,
			NumPredict:  l.config.MaxTokens,
			Stop:        req.Stop,
		},
	}

	var out ollamaGenerateResponse
	if err := l.client.Post(ctx, "/api/generate", body, &out); err != nil {
		return Response{}, err
	}
	if out.Error != "" {
		return Response{}, fmt.Errorf("ollama generate: %s", out.Error)
	}

	slog.Debug("LLM call completed",
		"model", l.config.Model,
		"prompt_tokens", out.PromptEvalCount,
		"completion_tokens", out.EvalCount,
		"done_reason", out.DoneReason,
		"duration", time.Since(start))

	return Response{
		Text:             out.Response,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

var _ LLM = (*OllamaLLM)(nil)
