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

// Package document defines the chunk type shared by ingestion and search and
// the metadata normalization applied before indexing.
//
// Vector stores with a fixed per-collection schema reject keys outside
// [A-Za-z0-9_] and batches whose rows disagree on the key set. Normalize
// fixes the former and Unify the latter.
package document

import (
	"maps"
	"slices"
	"strings"
)

// Document is one chunk of a source document.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Standard metadata keys set by the loaders.
const (
	MetaFileName     = "file_name"
	MetaFilePath     = "file_path"
	MetaFileType     = "file_type"
	MetaFileSize     = "file_size"
	MetaPageLabel    = "page_label"
	MetaLastModified = "last_modified_date"
	MetaChunkIndex   = "chunk_index"
	MetaTable        = "table"
)

// SanitizeKey replaces every character outside [A-Za-z0-9_] with '_'.
// Multi-byte runes become a single '_'.
func SanitizeKey(key string) string {
	clean := true
	for i := 0; i < len(key); i++ {
		if !isKeyByte(key[i]) {
			clean = false
			break
		}
	}
	if clean {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if r < 0x80 && isKeyByte(byte(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isKeyByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Normalize returns a copy of doc with every metadata key sanitized. When two
// keys collide after sanitizing, the value of the lexically greatest original
// key is kept.
func Normalize(doc Document) Document {
	out := doc
	if doc.Metadata == nil {
		return out
	}

	out.Metadata = make(map[string]string, len(doc.Metadata))
	for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
		out.Metadata[SanitizeKey(k)] = doc.Metadata[k]
	}
	return out
}

// NormalizeAll applies Normalize to each document.
func NormalizeAll(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Normalize(d)
	}
	return out
}

// Keys returns the sorted union of metadata keys across docs.
func Keys(docs []Document) []string {
	union := make(map[string]struct{})
	for _, d := range docs {
		for k := range d.Metadata {
			union[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(union))
}

// Unify returns copies of docs whose metadata all carry exactly the union of
// keys seen in the batch. Missing values are the empty string. The input is
// not modified.
func Unify(docs []Document) []Document {
	keys := Keys(docs)

	out := make([]Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(keys))
		for _, k := range keys {
			meta[k] = d.Metadata[k]
		}
		out[i] = Document{ID: d.ID, Content: d.Content, Metadata: meta}
	}
	return out
}
