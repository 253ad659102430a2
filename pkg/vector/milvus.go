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
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanlin8901/special-happiness/pkg/httpclient"
)

// MilvusConfig configures the Milvus provider. URI wins over Host/Port.
type MilvusConfig struct {
	// URI such as http://milvus:19530. tcp:// and grpc:// schemes are
	// rewritten to http:// since Milvus serves REST on the same port.
	URI string `yaml:"uri,omitempty" json:"uri,omitempty" jsonschema:"title=URI"`

	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=19530"`

	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`

	// Token is an API key; it takes precedence over Username/Password.
	Token string `yaml:"token,omitempty" json:"token,omitempty" jsonschema:"title=Token"`

	DBName  string        `yaml:"db_name,omitempty" json:"db_name,omitempty" jsonschema:"title=Database Name"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=30s"`

	// IDMaxLength sizes the VarChar primary key.
	IDMaxLength int `yaml:"id_max_length,omitempty" json:"id_max_length,omitempty" jsonschema:"title=ID Max Length,default=64"`
}

// SetDefaults applies default values.
func (c *MilvusConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 19530
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.IDMaxLength == 0 {
		c.IDMaxLength = 64
	}
}

// Validate checks the Milvus configuration.
func (c *MilvusConfig) Validate() error {
	if c.URI == "" && c.Host == "" {
		return fmt.Errorf("milvus uri or host is required")
	}
	return nil
}

// BaseURL returns the REST endpoint root.
func (c *MilvusConfig) BaseURL() string {
	if c.URI != "" {
		uri := strings.TrimRight(c.URI, "/")
		for _, scheme := range []string{"tcp://", "grpc://"} {
			if strings.HasPrefix(uri, scheme) {
				return "http://" + strings.TrimPrefix(uri, scheme)
			}
		}
		if !strings.Contains(uri, "://") {
			return "http://" + uri
		}
		return uri
	}
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *MilvusConfig) token() string {
	if c.Token != "" {
		return c.Token
	}
	if c.Username != "" {
		return c.Username + ":" + c.Password
	}
	return ""
}

// StoreError is a Milvus reply with a non-zero code.
type StoreError struct {
	Op      string
	Code    int
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("milvus %s: code %d: %s", e.Op, e.Code, e.Message)
}

// Is lets errors.Is match ErrCollectionNotFound.
func (e *StoreError) Is(target error) bool {
	if target != ErrCollectionNotFound {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "collection not found") || strings.Contains(msg, "can't find collection")
}

// MilvusProvider implements Provider against the Milvus v2 RESTful API.
type MilvusProvider struct {
	http    *httpclient.Client
	baseURL string
	dbName  string
	idLen   int
}

// NewMilvusProvider creates a provider. No request is made until first use.
func NewMilvusProvider(cfg MilvusConfig) (*MilvusProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		httpclient.WithMaxRetries(2),
	}
	if tok := cfg.token(); tok != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+tok))
	}

	return &MilvusProvider{
		http:    httpclient.New(opts...),
		baseURL: cfg.BaseURL(),
		dbName:  cfg.DBName,
		idLen:   cfg.IDMaxLength,
	}, nil
}

// Name returns the provider name.
func (p *MilvusProvider) Name() string {
	return string(ProviderMilvus)
}

type milvusReply[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// milvusCall posts body to a v2 endpoint and unwraps the code/message envelope.
func milvusCall[T any](ctx context.Context, p *MilvusProvider, op, path string, body map[string]any) (T, error) {
	var reply milvusReply[T]
	if p.dbName != "" {
		body["dbName"] = p.dbName
	}
	if err := p.http.DoJSON(ctx, http.MethodPost, p.baseURL+path, body, &reply); err != nil {
		return reply.Data, fmt.Errorf("milvus %s: %w", op, err)
	}
	if reply.Code != 0 {
		return reply.Data, &StoreError{Op: op, Code: reply.Code, Message: reply.Message}
	}
	return reply.Data, nil
}

func (p *MilvusProvider) has(ctx context.Context, collection string) (bool, error) {
	data, err := milvusCall[struct {
		Has bool `json:"has"`
	}](ctx, p, "has collection", "/v2/vectordb/collections/has", map[string]any{
		"collectionName": collection,
	})
	return data.Has, err
}

// EnsureCollection creates a quick-setup collection: VarChar id, a float
// vector field and dynamic fields for content and metadata.
func (p *MilvusProvider) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := p.has(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = milvusCall[map[string]any](ctx, p, "create collection", "/v2/vectordb/collections/create", map[string]any{
		"collectionName":   collection,
		"dimension":        dimension,
		"metricType":       "COSINE",
		"idType":           "VarChar",
		"primaryFieldName": "id",
		"vectorFieldName":  "vector",
		"params":           map[string]any{"max_length": p.idLen},
	})
	return err
}

// DropCollection drops the collection if it exists.
func (p *MilvusProvider) DropCollection(ctx context.Context, collection string) error {
	exists, err := p.has(ctx, collection)
	if err != nil || !exists {
		return err
	}
	_, err = milvusCall[map[string]any](ctx, p, "drop collection", "/v2/vectordb/collections/drop", map[string]any{
		"collectionName": collection,
	})
	return err
}

// Upsert writes points as rows with dynamic fields.
func (p *MilvusProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	rows := make([]map[string]any, 0, len(points))
	for _, pt := range points {
		row := make(map[string]any, len(pt.Metadata)+3)
		for k, v := range payload(pt) {
			row[k] = v
		}
		row["id"] = pt.ID
		row["vector"] = pt.Vector
		rows = append(rows, row)
	}

	_, err := milvusCall[map[string]any](ctx, p, "upsert", "/v2/vectordb/entities/upsert", map[string]any{
		"collectionName": collection,
		"data":           rows,
	})
	return err
}

// Search runs a single-vector ANN search. With the COSINE metric Milvus
// reports similarity in "distance", so it is used as the score directly.
func (p *MilvusProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	hits, err := milvusCall[[]map[string]any](ctx, p, "search", "/v2/vectordb/entities/search", map[string]any{
		"collectionName": collection,
		"data":           [][]float32{vector},
		"annsField":      "vector",
		"limit":          topK,
		"outputFields":   []string{"*"},
	})
	if err != nil {
		return nil, err
	}
	return convertMilvusResults(hits), nil
}

// Count returns the collection's row count.
func (p *MilvusProvider) Count(ctx context.Context, collection string) (int64, error) {
	data, err := milvusCall[struct {
		RowCount int64 `json:"rowCount"`
	}](ctx, p, "get stats", "/v2/vectordb/collections/get_stats", map[string]any{
		"collectionName": collection,
	})
	return data.RowCount, err
}

// Close is a no-op.
func (p *MilvusProvider) Close() error {
	return nil
}

func convertMilvusResults(hits []map[string]any) []Result {
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		var r Result
		raw := make(map[string]string, len(hit))
		for k, v := range hit {
			switch k {
			case "id":
				r.ID = fmt.Sprint(v)
			case "distance":
				if f, ok := v.(float64); ok {
					r.Score = float32(f)
				}
			case "vector":
			default:
				if s, ok := v.(string); ok {
					raw[k] = s
				} else if v != nil {
					raw[k] = fmt.Sprint(v)
				}
			}
		}
		r.Content, r.Metadata = splitPayload(raw)
		results = append(results, r)
	}
	return results
}

var _ Provider = (*MilvusProvider)(nil)
