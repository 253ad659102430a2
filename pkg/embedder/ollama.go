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

package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/ollama"
)

// Ollama's runner crashes on concurrent embedding requests, so every
// OllamaEmbedder in the process shares one lock.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *ollama.Client
	config config.EmbedderConfig
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder from cfg. cfg should have defaults
// applied.
func NewOllamaEmbedder(cfg config.EmbedderConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		client: ollama.NewClient(cfg.BaseURL, cfg.Timeout, 3),
		config: cfg,
	}
}

// Embed converts a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	slog.Debug("Ollama embedding request", "model", e.config.Model, "inputs", len(texts))

	var resp ollamaEmbedResponse
	if err := e.client.Post(ctx, "/api/embed", ollamaEmbedRequest{Model: e.config.Model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", e.config.Model, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	for i, v := range resp.Embeddings {
		if len(v) != e.config.Dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d (check embedder.dimension)", i, len(v), e.config.Dimension)
		}
	}
	return resp.Embeddings, nil
}

// Dimension returns the configured vector length.
func (e *OllamaEmbedder) Dimension() int {
	return e.config.Dimension
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.config.Model
}

var _ Embedder = (*OllamaEmbedder)(nil)
