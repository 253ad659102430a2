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

package tools

import (
	"database/sql"
	"fmt"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/document"
	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// Canonical tool names. The system prompt and the model both refer to them.
const (
	NamePaperSearch = "LabPaperSearch"
	NameSQLSearch   = "MSSQLVectorSearch"
	NameSQLSchema   = "SQLSchema"
	NameSQLQuery    = "SQLQuery"
	NameCode        = "Python_REPL"
	NameLLMAnswer   = "LLMAnswer"
)

// Deps are the backends the default tools are built on. DB may be nil, in
// which case the SQL tools are not registered.
type Deps struct {
	Config   *config.Config
	LLM      llms.LLM
	Embedder embedder.Embedder
	Store    vector.Provider
	DB       *sql.DB
	Metrics  *observability.Metrics
}

// NewDefaultRegistry registers the lab tool set in a fixed order.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.LLM == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, fmt.Errorf("llm, embedder and vector store are required")
	}
	cfg := deps.Config
	agentCfg := cfg.Agent

	reg := NewRegistry(WithTimeout(agentCfg.ToolTimeout), WithMetrics(deps.Metrics))

	candidates := []Tool{
		NewSearchTool(NamePaperSearch,
			"Use for questions answerable from the lab's PDF corpus (RAG search). Returns short snippets.",
			deps.Embedder, deps.Store, SearchOptions{
				Collection:    cfg.Collections.Papers,
				TopK:          agentCfg.Search.TopK,
				SnippetLen:    agentCfg.Search.PaperSnippetLen,
				SourceKey:     document.MetaFileName,
				DefaultSource: "paper",
			}),
		NewSearchTool(NameSQLSearch,
			"Use for semantic search over embedded rows of the SQL database (returns short snippets).",
			deps.Embedder, deps.Store, SearchOptions{
				Collection: cfg.Collections.SQL,
				TopK:       agentCfg.Search.TopK,
				SnippetLen: agentCfg.Search.SQLSnippetLen,
			}),
	}

	if deps.DB != nil {
		if cfg.Database == nil {
			return nil, fmt.Errorf("database config is required with a database handle")
		}
		sqlOpts := SQLOptions{
			Dialect:    cfg.Database.Dialect(),
			MaxRows:    agentCfg.SQL.MaxRows,
			MaxCellLen: agentCfg.SQL.MaxCellLen,
		}
		candidates = append(candidates,
			NewSQLSchemaTool(NameSQLSchema,
				"List tables and columns. Input: a table name, or empty for all tables.",
				deps.DB, sqlOpts),
			NewSQLQueryTool(NameSQLQuery,
				"Execute ONE SQL statement and return the rows. Input: pure SQL only, no prose, ending with a semicolon.",
				deps.DB, sqlOpts),
		)
	}

	if agentCfg.Code.Enabled {
		candidates = append(candidates, NewCodeTool(NameCode,
			"Execute Python code. Use print() to show results.", agentCfg.Code))
	}

	candidates = append(candidates, NewLLMAnswerTool(NameLLMAnswer,
		"Use for general non-database, non-PDF questions or a descriptive Northwind overview when no data retrieval is needed.",
		deps.LLM))

	for _, t := range candidates {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
