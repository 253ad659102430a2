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

// Package tools holds the named capabilities the reasoning loop can call and
// the registry it looks them up in.
//
// A tool maps a text input to a text output. Failures are reported in the
// output with one of the error prefixes below rather than as Go errors, so
// the agent can show them to the model and let it retry.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/registry"
)

// Error prefixes carried by tool outputs.
const (
	PrefixSQLError    = "SQL_ERROR:"
	PrefixSchemaError = "SCHEMA_ERROR:"
	PrefixSearchError = "SEARCH_ERROR:"
	PrefixCodeError   = "CODE_ERROR:"
	PrefixLLMError    = "LLM_ERROR:"
)

// NoMatch is returned by the search tools when nothing was found.
const NoMatch = "NO_MATCH"

var errorPrefixes = []string{PrefixSQLError, PrefixSchemaError, PrefixSearchError, PrefixCodeError, PrefixLLMError}

// IsErrorOutput reports whether out carries one of the error prefixes.
func IsErrorOutput(out string) bool {
	for _, p := range errorPrefixes {
		if strings.HasPrefix(out, p) {
			return true
		}
	}
	return false
}

// Func is a tool body. It reports failures in its output.
type Func func(ctx context.Context, input string) string

// Tool is a named capability.
type Tool struct {
	Name        string
	Description string
	Invoke      Func
}

// ErrUnknownTool matches any *UnknownToolError.
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError is returned by Registry.Invoke for an unregistered name.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Is lets errors.Is match ErrUnknownTool.
func (e *UnknownToolError) Is(target error) bool {
	return target == ErrUnknownTool
}

// Registry holds the tools offered to the agent. Build it once at startup;
// it is safe for concurrent Invoke calls afterwards.
type Registry struct {
	tools   *registry.Registry[Tool]
	timeout time.Duration
	metrics *observability.Metrics
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds every invocation. Zero means no limit.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithMetrics records invocations on m.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: registry.New[Tool]()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t. The name must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	if t.Invoke == nil {
		return fmt.Errorf("tool %q has no invoke func", t.Name)
	}
	if err := r.tools.Register(t.Name, t); err != nil {
		return fmt.Errorf("failed to register tool: %w", err)
	}
	return nil
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	return r.tools.List()
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return r.tools.Names()
}

// Invoke runs the named tool. The only error is *UnknownToolError; tool
// failures are part of the returned text.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, ok := r.tools.Get(name)
	if !ok {
		return "", &UnknownToolError{Name: name, Available: r.tools.Names()}
	}

	ctx, span := observability.Tracer(observability.ScopeTools).Start(ctx, "tool."+name,
		trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.Int("tool.input_chars", len(input)),
		),
	)
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out := t.Invoke(ctx, input)
	elapsed := time.Since(start)

	outcome := "ok"
	if IsErrorOutput(out) {
		outcome = "error"
		slog.Warn("Tool reported an error", "tool", name, "output", Truncate(out, 200))
	}
	span.SetAttributes(attribute.String("tool.outcome", outcome), attribute.Int("tool.output_chars", len(out)))
	r.metrics.RecordToolCall(ctx, name, outcome, elapsed)

	slog.Debug("Tool call completed", "tool", name, "outcome", outcome, "duration", elapsed)
	return out, nil
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
