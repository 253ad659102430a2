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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMilvus records requests per path and answers from a table.
type fakeMilvus struct {
	mu       sync.Mutex
	requests map[string][]map[string]any
	replies  map[string]any
	auth     string
}

func newFakeMilvus(replies map[string]any) (*fakeMilvus, *httptest.Server) {
	f := &fakeMilvus{requests: map[string][]map[string]any{}, replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)
		f.auth = r.Header.Get("Authorization")
		reply, ok := f.replies[r.URL.Path]
		f.mu.Unlock()

		if !ok {
			reply = map[string]any{"code": 0, "data": map[string]any{}}
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	return f, srv
}

func TestMilvusConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  MilvusConfig
		want string
	}{
		{"tcp uri", MilvusConfig{URI: "tcp://standalone:19530"}, "http://standalone:19530"},
		{"http uri", MilvusConfig{URI: "https://milvus.example.com/"}, "https://milvus.example.com"},
		{"bare uri", MilvusConfig{URI: "milvus:19530"}, "http://milvus:19530"},
		{"host port", MilvusConfig{Host: "db", Port: 19531}, "http://db:19531"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.BaseURL())
		})
	}
}

func TestMilvusProvider_EnsureCollectionCreatesWhenMissing(t *testing.T) {
	f, srv := newFakeMilvus(map[string]any{
		"/v2/vectordb/collections/has": map[string]any{"code": 0, "data": map[string]any{"has": false}},
	})
	defer srv.Close()

	p, err := NewMilvusProvider(MilvusConfig{URI: srv.URL, Username: "root", Password: "Milvus"})
	require.NoError(t, err)

	require.NoError(t, p.EnsureCollection(context.Background(), "lab_papers", 768))

	create := f.requests["/v2/vectordb/collections/create"]
	require.Len(t, create, 1)
	assert.Equal(t, "lab_papers", create[0]["collectionName"])
	assert.EqualValues(t, 768, create[0]["dimension"])
	assert.Equal(t, "COSINE", create[0]["metricType"])
	assert.Equal(t, "Bearer root:Milvus", f.auth)
}

func TestMilvusProvider_UpsertSendsRows(t *testing.T) {
	f, srv := newFakeMilvus(nil)
	defer srv.Close()

	p, err := NewMilvusProvider(MilvusConfig{URI: srv.URL})
	require.NoError(t, err)

	err = p.Upsert(context.Background(), "lab_papers", []Point{{
		ID:       "a",
		Vector:   []float32{0.1, 0.2},
		Content:  "hello",
		Metadata: map[string]string{"file_name": "x.pdf"},
	}})
	require.NoError(t, err)

	reqs := f.requests["/v2/vectordb/entities/upsert"]
	require.Len(t, reqs, 1)
	rows := reqs[0]["data"].([]any)
	row := rows[0].(map[string]any)
	assert.Equal(t, "a", row["id"])
	assert.Equal(t, "hello", row["content"])
	assert.Equal(t, "x.pdf", row["file_name"])
}

func TestMilvusProvider_Search(t *testing.T) {
	_, srv := newFakeMilvus(map[string]any{
		"/v2/vectordb/entities/search": map[string]any{
			"code": 0,
			"data": []map[string]any{
				{"id": "c1", "distance": 0.93, "content": "transformers", "file_name": "paper.pdf", "page_label": "3"},
			},
		},
	})
	defer srv.Close()

	p, err := NewMilvusProvider(MilvusConfig{URI: srv.URL})
	require.NoError(t, err)

	res, err := p.Search(context.Background(), "lab_papers", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c1", res[0].ID)
	assert.InDelta(t, 0.93, res[0].Score, 1e-6)
	assert.Equal(t, "transformers", res[0].Content)
	assert.Equal(t, map[string]string{"file_name": "paper.pdf", "page_label": "3"}, res[0].Metadata)
}

func TestMilvusProvider_ErrorCodeMapsToNotFound(t *testing.T) {
	_, srv := newFakeMilvus(map[string]any{
		"/v2/vectordb/collections/get_stats": map[string]any{"code": 100, "message": "collection not found[collection=nope]"},
	})
	defer srv.Close()

	p, err := NewMilvusProvider(MilvusConfig{URI: srv.URL})
	require.NoError(t, err)

	_, err = p.Count(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 100, se.Code)
}

func TestMilvusProvider_DropSkipsMissing(t *testing.T) {
	f, srv := newFakeMilvus(map[string]any{
		"/v2/vectordb/collections/has": map[string]any{"code": 0, "data": map[string]any{"has": false}},
	})
	defer srv.Close()

	p, err := NewMilvusProvider(MilvusConfig{URI: srv.URL, DBName: "lab"})
	require.NoError(t, err)

	require.NoError(t, p.DropCollection(context.Background(), "lab_papers"))
	assert.Empty(t, f.requests["/v2/vectordb/collections/drop"])
	assert.Equal(t, "lab", f.requests["/v2/vectordb/collections/has"][0]["dbName"])
}
