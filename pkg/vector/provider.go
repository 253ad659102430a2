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

// Package vector adapts external vector databases to the small surface the
// ingestion pipeline and search tools need.
package vector

import (
	"context"
	"errors"
)

// ContentKey is the payload field holding a point's text.
const ContentKey = "content"

// ErrCollectionNotFound is returned by Search and Count for a missing
// collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Point is one embedded chunk to store.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Result is one nearest-neighbour hit. Score is a similarity where higher is
// closer.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Provider is a vector database. Implementations are safe for concurrent use
// after construction.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string

	// EnsureCollection creates collection with the given dimension if it does
	// not exist yet.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// DropCollection removes collection and all of its points. Dropping a
	// missing collection is not an error.
	DropCollection(ctx context.Context, collection string) error

	// Upsert writes points, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to topK points closest to vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// Count returns the number of stored points.
	Count(ctx context.Context, collection string) (int64, error)

	Close() error
}

// payload flattens a point into the string map most backends store.
func payload(p Point) map[string]string {
	out := make(map[string]string, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		out[k] = v
	}
	out[ContentKey] = p.Content
	return out
}

// splitPayload separates the content field from the remaining metadata.
func splitPayload(in map[string]string) (string, map[string]string) {
	meta := make(map[string]string, len(in))
	for k, v := range in {
		if k != ContentKey {
			meta[k] = v
		}
	}
	return in[ContentKey], meta
}
