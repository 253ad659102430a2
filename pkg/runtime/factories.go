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

package runtime

import (
	"fmt"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// LLMFactory builds the completion backend.
type LLMFactory func(cfg config.LLMConfig, m *observability.Metrics) (llms.LLM, error)

// EmbedderFactory builds the embedding backend.
type EmbedderFactory func(cfg config.EmbedderConfig) (embedder.Embedder, error)

// StoreFactory builds the vector store.
type StoreFactory func(cfg *vector.ProviderConfig) (vector.Provider, error)

// DefaultLLMFactory creates an Ollama client.
func DefaultLLMFactory(cfg config.LLMConfig, m *observability.Metrics) (llms.LLM, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("llm base_url and model are required")
	}
	return llms.NewOllamaLLM(cfg, llms.WithMetrics(m)), nil
}

// DefaultEmbedderFactory creates an Ollama embedder.
func DefaultEmbedderFactory(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("embedder base_url and model are required")
	}
	return embedder.NewOllamaEmbedder(cfg), nil
}

// DefaultStoreFactory creates the configured vector provider.
func DefaultStoreFactory(cfg *vector.ProviderConfig) (vector.Provider, error) {
	return vector.NewProvider(cfg)
}
