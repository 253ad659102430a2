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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, p.EnsureCollection(ctx, "docs", 3))
	require.NoError(t, p.Upsert(ctx, "docs", []Point{
		{ID: "x", Vector: []float32{1, 0, 0}, Content: "about x", Metadata: map[string]string{"src": "x.pdf"}},
		{ID: "y", Vector: []float32{0, 1, 0}, Content: "about y", Metadata: map[string]string{"src": "y.pdf"}},
	}))

	n, err := p.Count(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// topK above the collection size is clamped.
	res, err := p.Search(ctx, "docs", []float32{0.9, 0.1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].ID)
	assert.Equal(t, "about x", res[0].Content)
	assert.Equal(t, "x.pdf", res[0].Metadata["src"])
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestChromemProvider_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	pt := Point{ID: "x", Vector: []float32{1, 0}, Content: "v1"}
	require.NoError(t, p.Upsert(ctx, "docs", []Point{pt}))
	pt.Content = "v2"
	require.NoError(t, p.Upsert(ctx, "docs", []Point{pt}))

	n, err := p.Count(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	res, err := p.Search(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2", res[0].Content)
}

func TestChromemProvider_MissingCollection(t *testing.T) {
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "nope", []float32{1}, 1)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	require.NoError(t, p.DropCollection(context.Background(), "nope"))
}

func TestChromemProvider_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "docs", []Point{{ID: "x", Vector: []float32{1, 0}, Content: "kept"}}))

	reopened, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	n, err := reopened.Count(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{"milvus default", ProviderConfig{}, false},
		{"chromem", ProviderConfig{Type: ProviderChromem}, false},
		{"pinecone without key", ProviderConfig{Type: ProviderPinecone}, true},
		{"pinecone ok", ProviderConfig{Type: ProviderPinecone, Pinecone: &PineconeConfig{APIKey: "k", IndexName: "lab"}}, false},
		{"unknown", ProviderConfig{Type: "weaviate"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SetDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
