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

// Package embedder turns text into vectors for indexing and search.
package embedder

import (
	"context"
)

// Embedder produces vector embeddings from text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed converts one text to a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts to vectors, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length.
	Dimension() int

	// Model returns the model name.
	Model() string
}
