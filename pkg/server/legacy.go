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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// LegacyChatRequest is the body of POST /api/chat. Either Messages or Prompt
// must be set; Messages wins when both are.
type LegacyChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`
	Prompt   string        `json:"prompt,omitempty"`
}

// LegacyChatResponse answers a messages request.
type LegacyChatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
}

// PromptResponse answers a prompt request.
type PromptResponse struct {
	Answer string `json:"answer"`
}

func (s *HTTPServer) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	var req LegacyChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid_json", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	switch {
	case len(req.Messages) > 0:
		question, err := LastUserMessage(req.Messages)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "no_user_message", err.Error())
			return
		}
		answer, err := s.answer(r.Context(), question)
		if err != nil {
			slog.Error("Legacy chat failed", "error", err)
			writeError(w, http.StatusBadGateway, "api_error", "llm_unavailable", answer)
			return
		}
		model := req.Model
		if model == "" {
			model = s.serverCfg.ModelName
		}
		writeJSON(w, http.StatusOK, LegacyChatResponse{
			Model:     model,
			CreatedAt: s.now().UTC().Format(time.RFC3339),
			Message:   ChatMessage{Role: "assistant", Content: answer},
			Done:      true,
		})

	case strings.TrimSpace(req.Prompt) != "":
		answer, err := s.answer(r.Context(), req.Prompt)
		if err != nil {
			slog.Error("Prompt answer failed", "error", err)
			writeError(w, http.StatusBadGateway, "api_error", "llm_unavailable", answer)
			return
		}
		writeJSON(w, http.StatusOK, PromptResponse{Answer: answer})

	default:
		writeError(w, http.StatusBadRequest, "invalid_request_error", "missing_input", "request needs messages or prompt")
	}
}
