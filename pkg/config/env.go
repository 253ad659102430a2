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

package config

import (
	"fmt"
	"strconv"

	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	keys []string
	set  func(cfg *Config, v string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*dst(cfg) = v
		return nil
	}
}

func setInt(dst func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*dst(cfg) = n
		return nil
	}
}

func milvus(cfg *Config) *vector.MilvusConfig {
	if cfg.VectorStore.Milvus == nil {
		cfg.VectorStore.Milvus = &vector.MilvusConfig{}
	}
	return cfg.VectorStore.Milvus
}

func qdrant(cfg *Config) *vector.QdrantConfig {
	if cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &vector.QdrantConfig{}
	}
	return cfg.VectorStore.Qdrant
}

func pinecone(cfg *Config) *vector.PineconeConfig {
	if cfg.VectorStore.Pinecone == nil {
		cfg.VectorStore.Pinecone = &vector.PineconeConfig{}
	}
	return cfg.VectorStore.Pinecone
}

func chromem(cfg *Config) *vector.ChromemConfig {
	if cfg.VectorStore.Chromem == nil {
		cfg.VectorStore.Chromem = &vector.ChromemConfig{}
	}
	return cfg.VectorStore.Chromem
}

func database(cfg *Config) *DatabaseConfig {
	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}
	return cfg.Database
}

// envBindings maps the deployment's environment variables onto Config. The
// first key present in each entry wins.
var envBindings = []envBinding{
	{[]string{"OLLAMA_BASE_URL"}, func(c *Config, v string) error {
		c.LLM.BaseURL = v
		c.Embedder.BaseURL = v
		return nil
	}},
	{[]string{"OLLAMA_MODEL", "LLM_MODEL"}, setString(func(c *Config) *string { return &c.LLM.Model })},
	{[]string{"OLLAMA_TEMPERATURE"}, func(c *Config, v string) error {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		c.LLM.Temperature = &t
		return nil
	}},
	{[]string{"N_CTX"}, setInt(func(c *Config) *int { return &c.LLM.ContextWindow })},
	{[]string{"OLLAMA_EMBED_MODEL", "EMBED_MODEL"}, setString(func(c *Config) *string { return &c.Embedder.Model })},
	{[]string{"EMBED_DIM"}, setInt(func(c *Config) *int { return &c.Embedder.Dimension })},

	{[]string{"VECTOR_STORE"}, func(c *Config, v string) error {
		c.VectorStore.Type = vector.ProviderType(v)
		return nil
	}},
	{[]string{"MILVUS_URI"}, setString(func(c *Config) *string { return &milvus(c).URI })},
	{[]string{"MILVUS_HOST"}, setString(func(c *Config) *string { return &milvus(c).Host })},
	{[]string{"MILVUS_PORT"}, setInt(func(c *Config) *int { return &milvus(c).Port })},
	{[]string{"MILVUS_USER"}, setString(func(c *Config) *string { return &milvus(c).Username })},
	{[]string{"MILVUS_PASS", "MILVUS_PASSWORD"}, setString(func(c *Config) *string { return &milvus(c).Password })},
	{[]string{"MILVUS_TOKEN"}, setString(func(c *Config) *string { return &milvus(c).Token })},
	{[]string{"QDRANT_HOST"}, setString(func(c *Config) *string { return &qdrant(c).Host })},
	{[]string{"QDRANT_PORT"}, setInt(func(c *Config) *int { return &qdrant(c).Port })},
	{[]string{"QDRANT_API_KEY"}, setString(func(c *Config) *string { return &qdrant(c).APIKey })},
	{[]string{"PINECONE_API_KEY"}, setString(func(c *Config) *string { return &pinecone(c).APIKey })},
	{[]string{"PINECONE_INDEX"}, setString(func(c *Config) *string { return &pinecone(c).IndexName })},
	{[]string{"CHROMEM_PATH"}, setString(func(c *Config) *string { return &chromem(c).PersistPath })},

	{[]string{"COLLECTION_NAME"}, setString(func(c *Config) *string { return &c.Collections.Papers })},
	{[]string{"SQL_COLLECTION_NAME"}, setString(func(c *Config) *string { return &c.Collections.SQL })},

	{[]string{"DB_DRIVER"}, setString(func(c *Config) *string { return &database(c).Driver })},
	{[]string{"MSSQL_SERVER", "DB_HOST"}, setString(func(c *Config) *string { return &database(c).Host })},
	{[]string{"MSSQL_PORT", "DB_PORT"}, setInt(func(c *Config) *int { return &database(c).Port })},
	{[]string{"MSSQL_DATABASE", "DB_NAME"}, setString(func(c *Config) *string { return &database(c).Database })},
	{[]string{"MSSQL_USER", "DB_USER"}, setString(func(c *Config) *string { return &database(c).Username })},
	{[]string{"MSSQL_PASSWORD", "DB_PASSWORD"}, setString(func(c *Config) *string { return &database(c).Password })},
	{[]string{"MSSQL_CHARSET", "DB_CHARSET"}, setString(func(c *Config) *string { return &database(c).Charset })},

	{[]string{"PDF_DIR"}, setString(func(c *Config) *string { return &c.Ingest.SourceDir })},
	{[]string{"CHUNK_SIZE"}, setInt(func(c *Config) *int { return &c.Ingest.ChunkSize })},
	{[]string{"CHUNK_OVERLAP"}, setInt(func(c *Config) *int { return &c.Ingest.ChunkOverlap })},
	{[]string{"MAX_ITERATIONS"}, setInt(func(c *Config) *int { return &c.Agent.MaxIterations })},

	{[]string{"SERVER_HOST"}, setString(func(c *Config) *string { return &c.Server.Host })},
	{[]string{"SERVER_PORT", "PORT"}, setInt(func(c *Config) *int { return &c.Server.Port })},
	{[]string{"MODEL_NAME"}, setString(func(c *Config) *string { return &c.Server.ModelName })},
}

// ApplyEnv overlays environment variables onto cfg. Values from the
// environment win over the config file.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, b := range envBindings {
		for _, key := range b.keys {
			v, ok := lookup(key)
			if !ok || v == "" {
				continue
			}
			if err := b.set(cfg, v); err != nil {
				return fmt.Errorf("environment variable %s: %w", key, err)
			}
			break
		}
	}
	return nil
}
