// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/alanlin8901/special-happiness/pkg/agent"
	"github.com/alanlin8901/special-happiness/pkg/utils"
)

// ErrNoUserMessage is returned when a chat request has no user message.
var ErrNoUserMessage = errors.New("no user message in request")

// DoneFrame terminates every chat stream.
const DoneFrame = "data: [DONE]\n\n"

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatMessage is one role-tagged message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// ChatCompletion is the non-streaming response envelope.
type ChatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// ChatChoice carries the answer.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports prompt and completion token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streamed frame.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries an incremental delta.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental part of a streamed message.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ModelList is the body of GET /v1/models.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

// ModelCard describes one model.
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ErrorResponse is the OpenAI error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *HTTPServer) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ModelList{
		Object: "list",
		Data: []ModelCard{{
			ID:      s.serverCfg.ModelName,
			Object:  "model",
			Created: s.now().Unix(),
			OwnedBy: s.serverCfg.OwnedBy,
		}},
	})
}

func (s *HTTPServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid_json", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	question, err := LastUserMessage(req.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "no_user_message", err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = s.serverCfg.ModelName
	}

	var answer string
	if s.serverCfg.StrictModel && req.Model != "" && req.Model != s.serverCfg.ModelName {
		slog.Warn("Request names an unknown model", "model", req.Model, "served", s.serverCfg.ModelName)
		answer = fmt.Sprintf("Model %q is not available. This server only serves %q.", req.Model, s.serverCfg.ModelName)
	} else {
		answer, err = s.answer(r.Context(), question)
		if err != nil {
			slog.Error("Chat completion failed", "error", err)
			writeError(w, http.StatusBadGateway, "api_error", "llm_unavailable", answer)
			return
		}
	}

	id := "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if req.Stream {
		s.streamCompletion(w, id, model, answer)
		return
	}

	counter := s.tokens()
	prompt := counter.CountMessages(toTokenMessages(req.Messages))
	completion := counter.Count(answer)
	writeJSON(w, http.StatusOK, ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: s.now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: answer},
			FinishReason: "stop",
		}},
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	})
}

// answer runs the agent on its own goroutine with a context that survives a
// client disconnect, and waits for it.
func (s *HTTPServer) answer(ctx context.Context, question string) (string, error) {
	type outcome struct {
		res agent.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.agent.Run(context.WithoutCancel(ctx), question)
		done <- outcome{res, err}
	}()

	out := <-done
	if out.err != nil {
		msg := out.res.Answer
		if msg == "" {
			msg = agent.UnavailableAnswer
		}
		return msg, out.err
	}
	return out.res.Answer, nil
}

// streamCompletion writes the answer as a role+content frame, a finish frame
// and the DONE sentinel.
func (s *HTTPServer) streamCompletion(w http.ResponseWriter, id, model, answer string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	created := s.now().Unix()
	stop := "stop"
	frames := []ChatCompletionChunk{
		{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []ChunkChoice{{Index: 0, Delta: Delta{Role: "assistant", Content: answer}}},
		},
		{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []ChunkChoice{{Index: 0, Delta: Delta{}, FinishReason: &stop}},
		},
	}

	rc := http.NewResponseController(w)
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			slog.Error("Failed to encode stream frame", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			slog.Debug("Client went away during stream", "error", err)
			return
		}
		_ = rc.Flush()
	}
	_, _ = w.Write([]byte(DoneFrame))
	_ = rc.Flush()
}

// LastUserMessage returns the content of the last message with role user.
func LastUserMessage(messages []ChatMessage) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content, nil
		}
	}
	return "", ErrNoUserMessage
}

func toTokenMessages(messages []ChatMessage) []utils.Message {
	out := make([]utils.Message, len(messages))
	for i, m := range messages {
		out[i] = utils.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, typ, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: message, Type: typ, Code: code}})
}
