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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// SearchOptions configures a semantic search tool.
type SearchOptions struct {
	Collection string
	TopK       int

	// SnippetLen is the number of runes kept from each hit.
	SnippetLen int

	// SourceKey names the metadata field printed before each snippet. Empty
	// prints no source.
	SourceKey string

	// DefaultSource is printed when a hit lacks SourceKey.
	DefaultSource string
}

// NewSearchTool returns a tool that embeds its input and lists the closest
// chunks of a collection as "[i] source: snippet..." lines.
func NewSearchTool(name, description string, emb embedder.Embedder, store vector.Provider, opts SearchOptions) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Invoke: func(ctx context.Context, input string) string {
			query := strings.TrimSpace(input)
			if query == "" {
				return PrefixSearchError + " empty query"
			}

			vec, err := emb.Embed(ctx, query)
			if err != nil {
				return fmt.Sprintf("%s embedding failed: %v", PrefixSearchError, err)
			}

			hits, err := store.Search(ctx, opts.Collection, vec, opts.TopK)
			if err != nil {
				if errors.Is(err, vector.ErrCollectionNotFound) {
					return fmt.Sprintf("%s collection %s has not been ingested yet", PrefixSearchError, opts.Collection)
				}
				return fmt.Sprintf("%s %v", PrefixSearchError, err)
			}
			return formatHits(hits, opts)
		},
	}
}

func formatHits(hits []vector.Result, opts SearchOptions) string {
	if len(hits) == 0 {
		return NoMatch
	}

	lines := make([]string, 0, len(hits))
	for i, h := range hits {
		snippet := strings.Join(strings.Fields(Truncate(h.Content, opts.SnippetLen)), " ")
		if opts.SourceKey == "" {
			lines = append(lines, fmt.Sprintf("[%d] %s...", i+1, snippet))
			continue
		}
		source := h.Metadata[opts.SourceKey]
		if source == "" {
			source = opts.DefaultSource
		}
		lines = append(lines, fmt.Sprintf("[%d] %s: %s...", i+1, source, snippet))
	}
	return strings.Join(lines, "\n")
}
