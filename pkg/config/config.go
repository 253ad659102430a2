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

// Package config holds labrag's configuration model, the YAML/env loader and
// the shared database pool.
package config

import (
	"fmt"

	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig          `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server"`
	LLM           LLMConfig             `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM"`
	Embedder      EmbedderConfig        `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder"`
	VectorStore   vector.ProviderConfig `yaml:"vector_store,omitempty" json:"vector_store,omitempty" jsonschema:"title=Vector Store"`
	Collections   CollectionsConfig     `yaml:"collections,omitempty" json:"collections,omitempty" jsonschema:"title=Collections"`
	Database      *DatabaseConfig       `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=Relational database used by the SQL tools; omit to disable them"`
	Ingest        IngestConfig          `yaml:"ingest,omitempty" json:"ingest,omitempty" jsonschema:"title=Ingestion"`
	Agent         AgentConfig           `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent"`
	Logger        LoggerConfig          `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`
	Observability observability.Config  `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`
}

// CollectionsConfig names the vector collections the tools search.
type CollectionsConfig struct {
	// Papers holds chunks of the PDF corpus.
	Papers string `yaml:"papers,omitempty" json:"papers,omitempty" jsonschema:"title=Papers Collection,default=lab_papers"`

	// SQL holds rows ingested from the relational database.
	SQL string `yaml:"sql,omitempty" json:"sql,omitempty" jsonschema:"title=SQL Collection,default=mssql_data"`
}

// SetDefaults applies defaults recursively.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	if c.Collections.Papers == "" {
		c.Collections.Papers = "lab_papers"
	}
	if c.Collections.SQL == "" {
		c.Collections.SQL = "mssql_data"
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
	c.Ingest.SetDefaults()
	c.Agent.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and reports the first failure with its path.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"llm", c.LLM.Validate},
		{"embedder", c.Embedder.Validate},
		{"vector_store", c.VectorStore.Validate},
		{"ingest", c.Ingest.Validate},
		{"agent", c.Agent.Validate},
		{"logger", c.Logger.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Collections.Papers == c.Collections.SQL {
		return fmt.Errorf("collections: papers and sql must differ (both %q)", c.Collections.Papers)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
