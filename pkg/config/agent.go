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

// DefaultFallbackAnswer is returned when the iteration budget runs out.
const DefaultFallbackAnswer = "Sorry, I could not reach a final answer within the allowed number of reasoning steps. Please rephrase the question or ask something more specific."

// AgentConfig configures the reasoning loop and its tools.
type AgentConfig struct {
	// MaxIterations bounds THINKING steps per question.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,minimum=1,default=10"`

	// FallbackAnswer is returned when MaxIterations is exhausted.
	FallbackAnswer string `yaml:"fallback_answer,omitempty" json:"fallback_answer,omitempty" jsonschema:"title=Fallback Answer"`

	// SystemPrompt replaces the built-in instructions when set. The tool
	// catalog and format contract are appended either way.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty" jsonschema:"title=System Prompt"`

	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout,omitempty" json:"tool_timeout,omitempty" jsonschema:"title=Tool Timeout,default=60s"`

	Search   SearchToolConfig `yaml:"search,omitempty" json:"search,omitempty" jsonschema:"title=Search Tools"`
	SQL      SQLToolConfig    `yaml:"sql,omitempty" json:"sql,omitempty" jsonschema:"title=SQL Tools"`
	Code     CodeToolConfig   `yaml:"code,omitempty" json:"code,omitempty" jsonschema:"title=Code Sandbox"`
	Shortcut ShortcutConfig   `yaml:"shortcut,omitempty" json:"shortcut,omitempty" jsonschema:"title=Descriptive Shortcut"`
}

// SearchToolConfig configures the two semantic search tools.
type SearchToolConfig struct {
	TopK            int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,minimum=1,default=3"`
	PaperSnippetLen int `yaml:"paper_snippet_len,omitempty" json:"paper_snippet_len,omitempty" jsonschema:"title=Paper Snippet Length,default=220"`
	SQLSnippetLen   int `yaml:"sql_snippet_len,omitempty" json:"sql_snippet_len,omitempty" jsonschema:"title=SQL Snippet Length,default=200"`
}

// SQLToolConfig configures schema introspection and query execution.
type SQLToolConfig struct {
	// MaxRows caps rows rendered into an observation.
	MaxRows int `yaml:"max_rows,omitempty" json:"max_rows,omitempty" jsonschema:"title=Max Rows,default=50"`

	// MaxCellLen truncates long cell values.
	MaxCellLen int `yaml:"max_cell_len,omitempty" json:"max_cell_len,omitempty" jsonschema:"title=Max Cell Length,default=120"`
}

// CodeToolConfig configures the code sandbox tool.
type CodeToolConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Interpreter is invoked as "<interpreter> -c <code>".
	Interpreter string `yaml:"interpreter,omitempty" json:"interpreter,omitempty" jsonschema:"title=Interpreter,default=python3"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=20s"`

	// MaxOutput truncates combined stdout and stderr, in bytes.
	MaxOutput int `yaml:"max_output,omitempty" json:"max_output,omitempty" jsonschema:"title=Max Output,default=4000"`

	// DeniedPatterns reject code containing any of these substrings.
	DeniedPatterns []string `yaml:"denied_patterns,omitempty" json:"denied_patterns,omitempty" jsonschema:"title=Denied Patterns"`

	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty" jsonschema:"title=Working Directory"`
}

// ShortcutConfig configures the keyword classifier that answers descriptive
// questions without entering the reasoning loop.
type ShortcutConfig struct {
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty" jsonschema:"title=Disabled,default=false"`

	// Keywords mark a question as descriptive.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty" jsonschema:"title=Descriptive Keywords"`

	// DataKeywords veto the shortcut because the question needs data.
	DataKeywords []string `yaml:"data_keywords,omitempty" json:"data_keywords,omitempty" jsonschema:"title=Data Keywords"`

	// Prompt frames the direct answer. %s receives the question.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty" jsonschema:"title=Prompt"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.FallbackAnswer == "" {
		c.FallbackAnswer = DefaultFallbackAnswer
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = 60 * time.Second
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = 3
	}
	if c.Search.PaperSnippetLen == 0 {
		c.Search.PaperSnippetLen = 220
	}
	if c.Search.SQLSnippetLen == 0 {
		c.Search.SQLSnippetLen = 200
	}
	if c.SQL.MaxRows == 0 {
		c.SQL.MaxRows = 50
	}
	if c.SQL.MaxCellLen == 0 {
		c.SQL.MaxCellLen = 120
	}
	if c.Code.Interpreter == "" {
		c.Code.Interpreter = "python3"
	}
	if c.Code.Timeout == 0 {
		c.Code.Timeout = 20 * time.Second
	}
	if c.Code.MaxOutput == 0 {
		c.Code.MaxOutput = 4000
	}
	if c.Code.DeniedPatterns == nil {
		c.Code.DeniedPatterns = []string{"import os", "import subprocess", "import shutil", "__import__", "open(", "socket"}
	}
	if c.Shortcut.Keywords == nil {
		c.Shortcut.Keywords = []string{
			"what is northwind", "introduce", "introduction", "overview", "describe the database",
			"what does the database", "what tables", "who are you", "what can you do",
		}
	}
	if c.Shortcut.DataKeywords == nil {
		c.Shortcut.DataKeywords = []string{
			"how many", "count", "list", "top", "sum", "average", "total", "highest", "lowest", "which customer", "which product",
		}
	}
	if c.Shortcut.Prompt == "" {
		c.Shortcut.Prompt = "You are a lab assistant for a research group that maintains a paper library and a Northwind sample SQL Server database. Answer the following descriptive question briefly and accurately without inventing data.\n\nQuestion: %s"
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("search.top_k must be at least 1")
	}
	if c.SQL.MaxRows < 1 {
		return fmt.Errorf("sql.max_rows must be at least 1")
	}
	if c.Code.Enabled && c.Code.Interpreter == "" {
		return fmt.Errorf("code.interpreter is required when the sandbox is enabled")
	}
	return nil
}
