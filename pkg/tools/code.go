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
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/alanlin8901/special-happiness/pkg/config"
)

var codeFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z0-9_+-]*\\s*\\n?(.*?)\\n?```\\s*$")

// NewCodeTool returns a tool that runs its input with the configured
// interpreter as "<interpreter> -c <code>" and reports combined output.
//
// The denied patterns are a substring filter, not isolation. Run the service
// in a container when the tool is enabled.
func NewCodeTool(name, description string, cfg config.CodeToolConfig) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Invoke: func(ctx context.Context, input string) string {
			code := stripCodeFence(input)
			if code == "" {
				return PrefixCodeError + " empty code"
			}
			for _, p := range cfg.DeniedPatterns {
				if p != "" && strings.Contains(code, p) {
					return fmt.Sprintf("%s code contains denied pattern %q", PrefixCodeError, p)
				}
			}

			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			return runCode(ctx, cfg, code)
		},
	}
}

func runCode(ctx context.Context, cfg config.CodeToolConfig, code string) string {
	cmd := exec.CommandContext(ctx, cfg.Interpreter, "-c", code)
	cmd.Dir = cfg.WorkingDir
	cmd.WaitDelay = time.Second

	output, err := cmd.CombinedOutput()
	out := strings.TrimRight(string(output), "\n")
	if cfg.MaxOutput > 0 && len(out) > cfg.MaxOutput {
		out = strings.ToValidUTF8(out[:cfg.MaxOutput], "") + "\n... (output truncated)"
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Sprintf("%s execution timed out after %s", PrefixCodeError, cfg.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Sprintf("%s exit code %d\n%s", PrefixCodeError, exitErr.ExitCode(), out)
		}
		return fmt.Sprintf("%s %v", PrefixCodeError, err)
	}
	if out == "" {
		return "(no output; use print() to show results)"
	}
	return out
}

func stripCodeFence(input string) string {
	s := strings.TrimSpace(input)
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(strings.Trim(s, "`"))
}
