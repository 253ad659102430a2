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
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant provider.
type QdrantConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`

	// Port is the gRPC port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=6334"`

	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`
	UseTLS bool   `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS"`
}

// SetDefaults applies default values.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// QdrantProvider implements Provider with the Qdrant gRPC client. Point IDs
// must be UUIDs, which the ingestion pipeline guarantees.
type QdrantProvider struct {
	client *qdrant.Client
}

// NewQdrantProvider connects to Qdrant.
func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	cfg.SetDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantProvider{client: client}, nil
}

// Name returns the provider name.
func (p *QdrantProvider) Name() string {
	return string(ProviderQdrant)
}

// EnsureCollection creates a cosine collection of the given size.
func (p *QdrantProvider) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}

	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// DropCollection deletes the collection if present.
func (p *QdrantProvider) DropCollection(ctx context.Context, collection string) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return nil
	}
	if err := p.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// Upsert writes the points and waits for them to be applied.
func (p *QdrantProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, pt := range points {
		values := make(map[string]*qdrant.Value, len(pt.Metadata)+1)
		for k, v := range payload(pt) {
			values[k] = qdrant.NewValueString(v)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(pt.ID),
			Vectors: qdrant.NewVectors(pt.Vector...),
			Payload: values,
		})
	}

	wait := true
	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Search returns the nearest points with their payloads.
func (p *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	resp, err := p.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	return convertQdrantResults(resp.GetResult()), nil
}

// Count returns the exact number of points.
func (p *QdrantProvider) Count(ctx context.Context, collection string) (int64, error) {
	exact := true
	n, err := p.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return int64(n), nil
}

// Close closes the gRPC connection.
func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

func convertQdrantResults(points []*qdrant.ScoredPoint) []Result {
	results := make([]Result, 0, len(points))

	for _, point := range points {
		var id string
		switch v := point.GetId().GetPointIdOptions().(type) {
		case *qdrant.PointId_Uuid:
			id = v.Uuid
		case *qdrant.PointId_Num:
			id = strconv.FormatUint(v.Num, 10)
		}

		raw := make(map[string]string, len(point.GetPayload()))
		for key, value := range point.GetPayload() {
			switch v := value.GetKind().(type) {
			case *qdrant.Value_StringValue:
				raw[key] = v.StringValue
			case *qdrant.Value_IntegerValue:
				raw[key] = strconv.FormatInt(v.IntegerValue, 10)
			case *qdrant.Value_DoubleValue:
				raw[key] = strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
			case *qdrant.Value_BoolValue:
				raw[key] = strconv.FormatBool(v.BoolValue)
			}
		}
		content, meta := splitPayload(raw)

		results = append(results, Result{
			ID:       id,
			Score:    point.GetScore(),
			Content:  content,
			Metadata: meta,
		})
	}
	return results
}

var _ Provider = (*QdrantProvider)(nil)
