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
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone provider.
type PineconeConfig struct {
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// Host overrides the control-plane URL.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host"`

	// IndexName is an existing index whose dimension matches the embedder.
	IndexName string `yaml:"index_name,omitempty" json:"index_name,omitempty" jsonschema:"title=Index Name"`
}

// PineconeProvider implements Provider on one Pinecone index. Each
// collection is a namespace, so dropping a collection clears its namespace.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string

	mu        sync.Mutex
	indexHost string
}

// NewPineconeProvider creates a Pinecone client.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	return &PineconeProvider{client: client, indexName: cfg.IndexName}, nil
}

// Name returns the provider name.
func (p *PineconeProvider) Name() string {
	return string(ProviderPinecone)
}

// connect opens a data-plane connection scoped to the collection namespace.
// The index host is resolved once and cached.
func (p *PineconeProvider) connect(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	host := p.indexHost
	p.mu.Unlock()

	if host == "" {
		index, err := p.client.DescribeIndex(ctx, p.indexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", p.indexName, err)
		}
		host = index.Host
		p.mu.Lock()
		p.indexHost = host
		p.mu.Unlock()
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: collection})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", p.indexName, err)
	}
	return conn, nil
}

// EnsureCollection checks that the index exists. Pinecone indexes are
// provisioned out of band with the embedder's dimension, and namespaces are
// created implicitly by the first upsert.
func (p *PineconeProvider) EnsureCollection(ctx context.Context, _ string, _ int) error {
	if _, err := p.client.DescribeIndex(ctx, p.indexName); err != nil {
		return fmt.Errorf("index %s is not available: %w", p.indexName, err)
	}
	return nil
}

// DropCollection deletes every vector in the namespace.
func (p *PineconeProvider) DropCollection(ctx context.Context, collection string) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", collection, err)
	}
	return nil
}

// Upsert writes the points with their payload as metadata.
func (p *PineconeProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	vectors := make([]*pinecone.Vector, 0, len(points))
	for _, pt := range points {
		fields := make(map[string]any, len(pt.Metadata)+1)
		for k, v := range payload(pt) {
			fields[k] = v
		}
		meta, err := structpb.NewStruct(fields)
		if err != nil {
			return fmt.Errorf("failed to convert metadata for %s: %w", pt.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       pt.ID,
			Values:   pt.Vector,
			Metadata: meta,
		})
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert %d vectors into %s: %w", len(vectors), collection, err)
	}
	return nil
}

// Search queries the namespace.
func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return convertPineconeResults(resp.Matches), nil
}

// Count reports the namespace's vector count from index stats.
func (p *PineconeProvider) Count(ctx context.Context, collection string) (int64, error) {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to describe index stats: %w", err)
	}
	ns, ok := stats.Namespaces[collection]
	if !ok || ns == nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return int64(ns.VectorCount), nil
}

// Close is a no-op; connections are closed per call.
func (p *PineconeProvider) Close() error {
	return nil
}

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Vector == nil {
			continue
		}
		raw := make(map[string]string)
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				if s, ok := v.(string); ok {
					raw[k] = s
				} else {
					raw[k] = fmt.Sprint(v)
				}
			}
		}
		content, meta := splitPayload(raw)
		results = append(results, Result{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Content:  content,
			Metadata: meta,
		})
	}
	return results
}

var _ Provider = (*PineconeProvider)(nil)
