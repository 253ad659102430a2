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
	"strings"
	"time"
)

// IngestConfig configures the document and SQL ingestion jobs.
type IngestConfig struct {
	// SourceDir is scanned non-recursively for input files.
	SourceDir string `yaml:"source_dir,omitempty" json:"source_dir,omitempty" jsonschema:"title=Source Directory,default=./data/pdfs"`

	// Extensions selects the files to load, with leading dots.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty" jsonschema:"title=Extensions,default=.pdf"`

	ChunkSize    int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" jsonschema:"title=Chunk Size,description=Chunk size in characters,minimum=1,default=800"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty" json:"chunk_overlap,omitempty" jsonschema:"title=Chunk Overlap,description=Overlap between neighbouring chunks,minimum=0,default=100"`

	// BatchSize is the number of chunks embedded and upserted together.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size,default=64"`

	// Recreate drops and recreates the collection before the first batch.
	Recreate bool `yaml:"recreate,omitempty" json:"recreate,omitempty" jsonschema:"title=Recreate Collection,default=false"`

	// WatchDebounce coalesces file events in watch mode.
	WatchDebounce time.Duration `yaml:"watch_debounce,omitempty" json:"watch_debounce,omitempty" jsonschema:"title=Watch Debounce,default=2s"`

	// Tables restricts SQL ingestion; empty means every base table.
	Tables []string `yaml:"tables,omitempty" json:"tables,omitempty" jsonschema:"title=SQL Tables"`

	// RowLimit caps the rows read per table; 0 reads all.
	RowLimit int `yaml:"row_limit,omitempty" json:"row_limit,omitempty" jsonschema:"title=Row Limit,minimum=0"`
}

// SetDefaults applies default values.
func (c *IngestConfig) SetDefaults() {
	if c.SourceDir == "" {
		c.SourceDir = "./data/pdfs"
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".pdf"}
	}
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = 2 * time.Second
	}
}

// Validate checks the ingestion configuration.
func (c *IngestConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.RowLimit < 0 {
		return fmt.Errorf("row_limit must be non-negative")
	}
	return nil
}
