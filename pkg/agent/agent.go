// Package agent runs the ReAct reasoning loop that answers a question by
// alternating model replies and tool observations.
//
// One Run walks an explicit state machine:
//
//	THINKING -> ACTING -> OBSERVING -> THINKING ... -> DONE | FAILED
//
// Model replies are decoded by ParseStep into a Step; only the state machine
// decides what happens next. A question that the keyword classifier marks as
// descriptive is answered with a single model call and never enters the loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/tools"
)

// StopSequence ends a model reply before it invents an observation.
const StopSequence = "\nObservation:"

// UnavailableAnswer is returned with an error when the model cannot be
// reached.
const UnavailableAnswer = "Sorry, the language model is currently unavailable. Please try again later."

// Status is how a run ended.
type Status string

const (
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusShortcut Status = "shortcut"
)

// Result is the outcome of one Run. Answer is never empty.
type Result struct {
	Answer     string
	Status     Status
	Iterations int
	Transcript *Transcript
}

type state int

const (
	stateThinking state = iota
	stateActing
	stateObserving
	stateDone
	stateFailed
)

// Agent answers questions with an LLM and a tool registry. It holds no
// per-run state and is safe for concurrent Run calls.
type Agent struct {
	llm        llms.LLM
	tools      *tools.Registry
	config     config.AgentConfig
	system     string
	classifier *Classifier
	metrics    *observability.Metrics
}

// Option customizes an Agent.
type Option func(*Agent)

// WithMetrics records each run on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// New creates an agent. cfg should have defaults applied.
func New(llm llms.LLM, registry *tools.Registry, cfg config.AgentConfig, opts ...Option) (*Agent, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if registry == nil || len(registry.Names()) == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max_iterations must be at least 1, got %d", cfg.MaxIterations)
	}
	if cfg.FallbackAnswer == "" {
		cfg.FallbackAnswer = config.DefaultFallbackAnswer
	}

	a := &Agent{
		llm:    llm,
		tools:  registry,
		config: cfg,
		system: SystemPrompt(cfg.SystemPrompt, registry.Tools()),
	}
	if !cfg.Shortcut.Disabled {
		a.classifier = NewClassifier(cfg.Shortcut.Keywords, cfg.Shortcut.DataKeywords)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SystemPrompt returns the instructions sent with every THINKING call.
func (a *Agent) SystemPrompt() string {
	return a.system
}

// Run answers question. The only error is a failed model call; the Result
// still carries a usable Answer in that case.
func (a *Agent) Run(ctx context.Context, question string) (res Result, err error) {
	question = strings.TrimSpace(question)
	start := time.Now()

	ctx, span := observability.Tracer(observability.ScopeAgent).Start(ctx, "agent.run",
		trace.WithAttributes(attribute.Int("agent.question_chars", len(question))),
	)
	defer func() {
		span.SetAttributes(
			attribute.String("agent.status", string(res.Status)),
			attribute.Int("agent.iterations", res.Iterations),
		)
		observability.EndSpan(span, err)
		a.metrics.RecordAgentRun(ctx, string(res.Status), res.Iterations, time.Since(start))
		slog.Info("Agent run completed",
			"status", res.Status,
			"iterations", res.Iterations,
			"tools", res.Transcript.Tools(),
			"duration", time.Since(start))
	}()

	if a.classifier.Match(question) {
		if res, ok, err := a.shortcut(ctx, question); ok || err != nil {
			return res, err
		}
	}
	return a.loop(ctx, question)
}

func (a *Agent) shortcut(ctx context.Context, question string) (Result, bool, error) {
	slog.Debug("Answering descriptive question directly", "question", question)

	resp, err := a.llm.Generate(ctx, llms.Request{Prompt: shortcutPrompt(a.config.Shortcut.Prompt, question)})
	if err != nil {
		return Result{
			Answer:     UnavailableAnswer,
			Status:     StatusFailed,
			Transcript: &Transcript{},
		}, false, fmt.Errorf("shortcut answer failed: %w", err)
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		slog.Warn("Direct answer was empty, falling back to the reasoning loop")
		return Result{}, false, nil
	}
	t := &Transcript{}
	t.add(Turn{Kind: TurnFinal, Text: answer})
	return Result{Answer: answer, Status: StatusShortcut, Transcript: t}, true, nil
}

func shortcutPrompt(tmpl, question string) string {
	if !strings.Contains(tmpl, "%s") {
		return strings.TrimSpace(tmpl + "\n\nQuestion: " + question)
	}
	return fmt.Sprintf(tmpl, question)
}

func (a *Agent) loop(ctx context.Context, question string) (Result, error) {
	var (
		st         = stateThinking
		transcript = &Transcript{}
		iterations int
		pending    ToolCall
		observed   string
		answer     string
	)
	names := a.tools.Names()

	for {
		switch st {
		case stateThinking:
			if iterations >= a.config.MaxIterations {
				st = stateFailed
				continue
			}
			iterations++

			resp, err := a.llm.Generate(ctx, llms.Request{
				System: a.system,
				Prompt: userPrompt(question, transcript),
				Stop:   []string{StopSequence},
			})
			if err != nil {
				return Result{
					Answer:     UnavailableAnswer,
					Status:     StatusFailed,
					Iterations: iterations,
					Transcript: transcript,
				}, fmt.Errorf("reasoning step %d failed: %w", iterations, err)
			}

			switch step := ParseStep(resp.Text).(type) {
			case FinalAnswer:
				transcript.add(Turn{Kind: TurnFinal, Thought: step.Thought, Text: step.Text})
				answer = step.Text
				st = stateDone
			case ToolCall:
				transcript.add(Turn{Kind: TurnAction, Thought: step.Thought, Tool: step.Tool, Input: step.Input})
				pending = step
				st = stateActing
			case ParseFailure:
				slog.Debug("Could not parse model reply", "iteration", iterations, "reason", step.Reason, "reply", tools.Truncate(step.Raw, 300))
				transcript.add(Turn{Kind: TurnUnparsed, Text: step.Raw})
				transcript.add(Turn{Kind: TurnObservation, Text: correction(step.Reason, names)})
			}

		case stateActing:
			slog.Debug("Invoking tool", "iteration", iterations, "tool", pending.Tool, "input", tools.Truncate(pending.Input, 300))
			out, err := a.tools.Invoke(ctx, pending.Tool, pending.Input)
			switch {
			case errors.Is(err, tools.ErrUnknownTool):
				out = unknownToolObservation(pending.Tool, names)
			case err != nil:
				out = err.Error()
			case strings.TrimSpace(out) == "":
				out = "(empty result)"
			}
			observed = out
			st = stateObserving

		case stateObserving:
			transcript.add(Turn{Kind: TurnObservation, Text: observed})
			st = stateThinking

		case stateDone:
			return Result{Answer: answer, Status: StatusDone, Iterations: iterations, Transcript: transcript}, nil

		case stateFailed:
			slog.Warn("Iteration budget exhausted", "max_iterations", a.config.MaxIterations)
			return Result{Answer: a.config.FallbackAnswer, Status: StatusFailed, Iterations: iterations, Transcript: transcript}, nil
		}
	}
}
