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

package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/alanlin8901/special-happiness/pkg/utils"
)

// ChromemConfig configures the embedded provider.
type ChromemConfig struct {
	// PersistPath is a directory; empty keeps vectors in memory only.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty" jsonschema:"title=Persist Path"`

	// Compress gzips persisted collections.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty" jsonschema:"title=Compress"`
}

// ChromemProvider implements Provider with chromem-go. Embeddings always
// arrive precomputed, so the collection's embedding func is never used.
type ChromemProvider struct {
	db *chromem.DB
	mu sync.Mutex
}

var errNoEmbedding = errors.New("chromem: documents must carry precomputed embeddings")

func precomputed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// NewChromemProvider opens or creates the embedded database.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	if cfg.PersistPath == "" {
		return &ChromemProvider{db: chromem.NewDB()}, nil
	}

	dir, err := utils.EnsureDir(cfg.PersistPath)
	if err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(dir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database at %s: %w", cfg.PersistPath, err)
	}
	slog.Info("Opened embedded vector store", "path", cfg.PersistPath)
	return &ChromemProvider{db: db}, nil
}

// Name returns the provider name.
func (p *ChromemProvider) Name() string {
	return string(ProviderChromem)
}

// EnsureCollection creates the collection if needed. chromem infers the
// dimension from the first document.
func (p *ChromemProvider) EnsureCollection(_ context.Context, collection string, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.db.GetOrCreateCollection(collection, nil, precomputed); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// DropCollection deletes the collection.
func (p *ChromemProvider) DropCollection(_ context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// Upsert adds the points; chromem replaces documents with an existing ID.
func (p *ChromemProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	p.mu.Lock()
	col, err := p.db.GetOrCreateCollection(collection, nil, precomputed)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open collection %s: %w", collection, err)
	}

	docs := make([]chromem.Document, 0, len(points))
	for _, pt := range points {
		meta := make(map[string]string, len(pt.Metadata))
		for k, v := range pt.Metadata {
			meta[k] = v
		}
		docs = append(docs, chromem.Document{
			ID:        pt.ID,
			Content:   pt.Content,
			Metadata:  meta,
			Embedding: pt.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", collection, err)
	}
	return nil
}

// Search returns the nearest documents by cosine similarity.
func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col := p.collection(collection)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem rejects nResults larger than the collection.
	n := min(topK, col.Count())
	if n == 0 {
		return nil, nil
	}

	hits, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:       h.ID,
			Score:    h.Similarity,
			Content:  h.Content,
			Metadata: h.Metadata,
		})
	}
	return results, nil
}

// Count returns the number of documents.
func (p *ChromemProvider) Count(_ context.Context, collection string) (int64, error) {
	col := p.collection(collection)
	if col == nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return int64(col.Count()), nil
}

func (p *ChromemProvider) collection(name string) *chromem.Collection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.GetCollection(name, precomputed)
}

// Close is a no-op; persistent databases write through on every change.
func (p *ChromemProvider) Close() error {
	return nil
}

var _ Provider = (*ChromemProvider)(nil)
