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
	"time"
)

// LLMConfig configures the Ollama completion endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,default=http://localhost:11434"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=llama3.2:3b"`

	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,minimum=0,maximum=2,default=0"`

	// ContextWindow is passed as num_ctx.
	ContextWindow int `yaml:"context_window,omitempty" json:"context_window,omitempty" jsonschema:"title=Context Window,default=4096"`

	// MaxTokens is passed as num_predict; 0 leaves the server default.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens"`

	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=2m"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,default=2"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "llama3.2:3b"
	}
	if c.Temperature == nil {
		t := 0.0
		c.Temperature = &t
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", *c.Temperature)
	}
	if c.ContextWindow < 0 || c.MaxTokens < 0 {
		return fmt.Errorf("context_window and max_tokens must be non-negative")
	}
	return nil
}

// EmbedderConfig configures the Ollama embedding endpoint.
type EmbedderConfig struct {
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,default=http://localhost:11434"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=nomic-embed-text"`

	// Dimension must match the model output and the vector collection.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,default=768"`

	// BatchSize is the number of texts sent per /api/embed call.
	BatchSize int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size,default=32"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=60s"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}
