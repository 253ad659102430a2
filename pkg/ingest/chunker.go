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


package ingest

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alanlin8901/special-happiness/pkg/document"
)

// Chunker splits text into windows of Size runes. Neighbouring windows share
// Overlap runes.
type Chunker struct {
	Size    int
	Overlap int
}

// Split returns the windows of text. Windows that hold only whitespace are
// dropped. Overlap must be smaller than Size.
func (c Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" || c.Size <= 0 {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.Size {
		return []string{text}
	}

	runes := []rune(text)
	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.Size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Chunk splits every page document of one file. Chunk indexes run across
// the whole file so (file_path, chunk_index) identifies a chunk.
func (c Chunker) Chunk(pages []document.Document) []document.Document {
	var out []document.Document
	for _, page := range pages {
		for _, text := range c.Split(page.Content) {
			meta := make(map[string]string, len(page.Metadata)+1)
			for k, v := range page.Metadata {
				meta[k] = v
			}
			meta[document.MetaChunkIndex] = strconv.Itoa(len(out))
			out = append(out, document.Document{Content: text, Metadata: meta})
		}
	}
	return out
}
