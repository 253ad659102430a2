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
	"fmt"
	"strings"

	"github.com/alanlin8901/special-happiness/pkg/llms"
)

// NewLLMAnswerTool returns a tool that sends its input to the model as a
// plain prompt and returns the completion.
func NewLLMAnswerTool(name, description string, llm llms.LLM) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Invoke: func(ctx context.Context, input string) string {
			prompt := strings.TrimSpace(input)
			if prompt == "" {
				return PrefixLLMError + " empty prompt"
			}
			resp, err := llm.Generate(ctx, llms.Request{Prompt: prompt})
			if err != nil {
				return fmt.Sprintf("%s %v", PrefixLLMError, err)
			}
			return strings.TrimSpace(resp.Text)
		},
	}
}
