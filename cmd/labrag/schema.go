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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/alanlin8901/special-happiness/pkg/config"
)

// SchemaCmd prints the JSON Schema of the configuration file.
type SchemaCmd struct {
	Compact bool `short:"C" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	return writeSchema(os.Stdout, c.Compact)
}

func configSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://github.com/alanlin8901/special-happiness/schemas/config.json"
	schema.Title = "labrag Configuration Schema"
	schema.Description = "Configuration of the lab RAG chat service"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"llm": map[string]any{
				"base_url": "${OLLAMA_BASE_URL:-http://localhost:11434}",
				"model":    "llama3.2:3b",
			},
			"vector_store": map[string]any{
				"type":   "milvus",
				"milvus": map[string]any{"uri": "http://localhost:19530"},
			},
			"database": map[string]any{
				"driver":   "sqlserver",
				"host":     "${MSSQL_SERVER}",
				"database": "Northwind",
			},
		},
	}
	return schema
}

func writeSchema(w io.Writer, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(configSchema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
