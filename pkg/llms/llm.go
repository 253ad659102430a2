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

// Package llms provides text-completion clients for the reasoning loop.
package llms

import (
	"context"
)

// Request is a single completion call.
type Request struct {
	// System is sent as the system prompt when non-empty.
	System string

	Prompt string

	// Stop ends generation at the first occurrence of any sequence. The
	// sequence itself is not included in the reply.
	Stop []string
}

// Response is the model's completion with token accounting when the backend
// reports it.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// LLM completes prompts. Implementations must be safe for concurrent use.
type LLM interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Model returns the backend model identifier.
	Model() string
}
