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

// Package sqlguard reduces LLM-written tool input to a single SQL statement.
//
// The guard is a syntactic whitelist. It keeps at most one statement and
// requires it to start with a known verb, but it does not judge what the
// statement does: a lone DELETE or UPDATE passes and will be executed. That
// makes the SQL query tool the main trust boundary of the service.
package sqlguard

import (
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?is)```\\s*sql\\b(.*?)(?:```|$)")
	verbPattern  = regexp.MustCompile(`(?i)\b(select|with|insert|update|delete|exec)\b`)
)

// Extract returns the single statement found in raw, terminated by exactly
// one ";". It returns "" when raw holds no statement.
//
// A ```sql fence wins over surrounding prose. Without one, the text from the
// first SQL verb onward is used. Only the part before the first ";" is kept.
func Extract(raw string) string {
	var text string
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		text = strings.TrimSpace(m[1])
	} else {
		text = strings.Trim(raw, "` \t\r\n")
		loc := verbPattern.FindStringIndex(text)
		if loc == nil {
			return ""
		}
		text = text[loc[0]:]
	}

	stmt, _, _ := strings.Cut(text, ";")
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return ""
	}
	return stmt + ";"
}

// Verb returns the lower-cased leading verb of stmt, or "" when stmt does
// not start with one.
func Verb(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	loc := verbPattern.FindStringSubmatchIndex(stmt)
	if loc == nil || loc[0] != 0 {
		return ""
	}
	return strings.ToLower(stmt[loc[2]:loc[3]])
}

// Mutates reports whether stmt changes data rather than reading it. EXEC is
// treated as a read since stored procedures usually return rows.
func Mutates(stmt string) bool {
	switch Verb(stmt) {
	case "insert", "update", "delete":
		return true
	default:
		return false
	}
}
