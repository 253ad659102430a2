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
	"fmt"
)

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderMilvus talks to Milvus over its v2 RESTful API.
	ProviderMilvus ProviderType = "milvus"

	// ProviderQdrant uses the Qdrant gRPC client.
	ProviderQdrant ProviderType = "qdrant"

	// ProviderChromem is embedded and needs no service. Useful for development.
	ProviderChromem ProviderType = "chromem"

	// ProviderPinecone uses the managed Pinecone service; collections map to
	// namespaces of one index.
	ProviderPinecone ProviderType = "pinecone"
)

// ProviderConfig selects and configures a vector provider.
type ProviderConfig struct {
	Type ProviderType `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,enum=milvus,enum=qdrant,enum=chromem,enum=pinecone,default=milvus"`

	Milvus   *MilvusConfig   `yaml:"milvus,omitempty" json:"milvus,omitempty" jsonschema:"title=Milvus"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" json:"qdrant,omitempty" jsonschema:"title=Qdrant"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty" json:"chromem,omitempty" jsonschema:"title=Chromem"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty" jsonschema:"title=Pinecone"`
}

// SetDefaults fills the selected provider's section.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderMilvus
	}
	switch c.Type {
	case ProviderMilvus:
		if c.Milvus == nil {
			c.Milvus = &MilvusConfig{}
		}
		c.Milvus.SetDefaults()
	case ProviderQdrant:
		if c.Qdrant == nil {
			c.Qdrant = &QdrantConfig{}
		}
		c.Qdrant.SetDefaults()
	case ProviderChromem:
		if c.Chromem == nil {
			c.Chromem = &ChromemConfig{}
		}
	case ProviderPinecone:
		if c.Pinecone == nil {
			c.Pinecone = &PineconeConfig{}
		}
	}
}

// Validate checks that the selected provider is configured.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderMilvus:
		if c.Milvus == nil {
			return fmt.Errorf("milvus configuration is required")
		}
		return c.Milvus.Validate()
	case ProviderQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant.host is required")
		}
	case ProviderChromem:
	case ProviderPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone.api_key is required")
		}
		if c.Pinecone.IndexName == "" {
			return fmt.Errorf("pinecone.index_name is required")
		}
	default:
		return fmt.Errorf("unknown vector store type %q (valid: milvus, qdrant, chromem, pinecone)", c.Type)
	}
	return nil
}

// NewProvider builds the configured provider.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderMilvus:
		return NewMilvusProvider(*cfg.Milvus)
	case ProviderQdrant:
		return NewQdrantProvider(*cfg.Qdrant)
	case ProviderChromem:
		var cc ChromemConfig
		if cfg.Chromem != nil {
			cc = *cfg.Chromem
		}
		return NewChromemProvider(cc)
	case ProviderPinecone:
		return NewPineconeProvider(*cfg.Pinecone)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
}
