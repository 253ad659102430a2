package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/llms"
	"github.com/alanlin8901/special-happiness/pkg/tools"
)

// scriptedLLM replays canned replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llms.Request
}

func (s *scriptedLLM) Generate(_ context.Context, req llms.Request) (llms.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llms.Response{}, s.err
	}
	if len(s.replies) == 0 {
		return llms.Response{Text: "I am still thinking"}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return llms.Response{Text: reply}, nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

type recordedCall struct {
	tool  string
	input string
}

func newTestRegistry(t *testing.T, calls *[]recordedCall) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	for name, out := range map[string]string{
		tools.NameSQLSchema: "Table: Orders(OrderID int, Freight money)",
		tools.NameSQLQuery:  "n\n830\n(1 rows)",
	} {
		require.NoError(t, reg.Register(tools.Tool{
			Name:        name,
			Description: "test " + name,
			Invoke: func(_ context.Context, input string) string {
				*calls = append(*calls, recordedCall{name, input})
				return out
			},
		}))
	}
	return reg
}

func testConfig() config.AgentConfig {
	cfg := config.AgentConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestAgent_FinalAnswerImmediately(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{" I know this.\nFinal Answer: 42"}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "What is six times seven?")
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, calls)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, []string{"\nObservation:"}, req.Stop)
	assert.Equal(t, a.SystemPrompt(), req.System)
	assert.Equal(t, "Question: What is six times seven?\nThought:", req.Prompt)
}

func TestAgent_ToolRoundTrip(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{
		" I should check the schema.\nAction: SQLSchema\nAction Input: Orders",
		" Now count.\nAction: SQLQuery\nAction Input: SELECT COUNT(*) AS n FROM Orders;",
		" I now know the final answer\nFinal Answer: There are 830 orders.",
	}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "How many orders are there?")
	require.NoError(t, err)
	assert.Equal(t, "There are 830 orders.", res.Answer)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, []recordedCall{
		{tools.NameSQLSchema, "Orders"},
		{tools.NameSQLQuery, "SELECT COUNT(*) AS n FROM Orders;"},
	}, calls)
	assert.Equal(t, []string{tools.NameSQLSchema, tools.NameSQLQuery}, res.Transcript.Tools())
	assert.Equal(t, 5, res.Transcript.Len())

	// The third call sees both observations.
	third := llm.requests[2].Prompt
	assert.Equal(t, "Question: How many orders are there?\n"+
		"Thought: I should check the schema.\nAction: SQLSchema\nAction Input: Orders\n"+
		"Observation: Table: Orders(OrderID int, Freight money)\n"+
		"Thought: Now count.\nAction: SQLQuery\nAction Input: SELECT COUNT(*) AS n FROM Orders;\n"+
		"Observation: n\n830\n(1 rows)\n"+
		"Thought:", third)
}

func TestAgent_UnknownTool(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{
		"Action: WebSearch\nAction Input: northwind",
		"Final Answer: done",
	}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "find it")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Answer)
	assert.Empty(t, calls)

	obs := res.Transcript.Turns[1]
	assert.Equal(t, TurnObservation, obs.Kind)
	assert.Contains(t, obs.Text, `"WebSearch" is not a valid tool`)
	assert.Contains(t, obs.Text, tools.NameSQLSchema)
	assert.Contains(t, obs.Text, tools.NameSQLQuery)
}

func TestAgent_ParseFailureRecovers(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{
		"The answer is probably in the database.",
		"Final Answer: 830",
	}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "How many orders are there?")
	require.NoError(t, err)
	assert.Equal(t, "830", res.Answer)
	assert.Equal(t, 2, res.Iterations)

	second := llm.requests[1].Prompt
	assert.Contains(t, second, "Thought: The answer is probably in the database.\n")
	assert.Contains(t, second, "Observation: Invalid format: no Action or Final Answer found.")
}

func TestAgent_BudgetExhausted(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
	}{
		{name: "parse failures", replies: nil},
		{name: "endless tool calls", replies: []string{
			"Action: SQLSchema\nAction Input: all",
			"Action: SQLSchema\nAction Input: all",
			"Action: SQLSchema\nAction Input: all",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []recordedCall
			cfg := testConfig()
			cfg.MaxIterations = 3
			llm := &scriptedLLM{replies: tt.replies}
			a, err := New(llm, newTestRegistry(t, &calls), cfg)
			require.NoError(t, err)

			res, err := a.Run(context.Background(), "loop forever")
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, config.DefaultFallbackAnswer, res.Answer)
			assert.Equal(t, 3, res.Iterations)
			assert.Len(t, llm.requests, 3)
		})
	}
}

func TestAgent_CustomFallback(t *testing.T) {
	var calls []recordedCall
	cfg := testConfig()
	cfg.MaxIterations = 1
	cfg.FallbackAnswer = "no luck"
	a, err := New(&scriptedLLM{}, newTestRegistry(t, &calls), cfg)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "no luck", res.Answer)
}

func TestAgent_LLMUnavailable(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{err: errors.New("connection refused")}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "How many orders are there?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, UnavailableAnswer, res.Answer)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestAgent_Shortcut(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{"Northwind is a sample trading company database."}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "What is Northwind?")
	require.NoError(t, err)
	assert.Equal(t, StatusShortcut, res.Status)
	assert.Equal(t, "Northwind is a sample trading company database.", res.Answer)
	assert.Equal(t, 0, res.Iterations)

	require.Len(t, llm.requests, 1)
	assert.Empty(t, llm.requests[0].System)
	assert.Empty(t, llm.requests[0].Stop)
	assert.True(t, strings.HasSuffix(llm.requests[0].Prompt, "Question: What is Northwind?"))
}

func TestAgent_ShortcutVetoedByDataKeyword(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{"Final Answer: 91"}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "Give an overview: how many customers are there?")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "91", res.Answer)
}

func TestAgent_ShortcutDisabled(t *testing.T) {
	var calls []recordedCall
	cfg := testConfig()
	cfg.Shortcut.Disabled = true
	llm := &scriptedLLM{replies: []string{"Final Answer: a sample database"}}
	a, err := New(llm, newTestRegistry(t, &calls), cfg)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "What is Northwind?")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "a sample database", res.Answer)
}

func TestAgent_EmptyShortcutFallsBackToLoop(t *testing.T) {
	var calls []recordedCall
	llm := &scriptedLLM{replies: []string{"   ", "Final Answer: fallback path"}}
	a, err := New(llm, newTestRegistry(t, &calls), testConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "overview please")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "fallback path", res.Answer)
}

func TestNew_Validation(t *testing.T) {
	var calls []recordedCall
	reg := newTestRegistry(t, &calls)

	_, err := New(nil, reg, testConfig())
	assert.Error(t, err)

	_, err = New(&scriptedLLM{}, tools.NewRegistry(), testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.MaxIterations = 0
	_, err = New(&scriptedLLM{}, reg, cfg)
	assert.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	reg := tools.NewRegistry()
	for _, name := range []string{tools.NamePaperSearch, tools.NameSQLQuery, tools.NameLLMAnswer} {
		require.NoError(t, reg.Register(tools.Tool{Name: name, Description: "desc of " + name, Invoke: func(context.Context, string) string { return "" }}))
	}

	p := SystemPrompt("", reg.Tools())
	assert.True(t, strings.HasPrefix(p, "You are a helpful research assistant."))
	assert.Contains(t, p, "- LabPaperSearch: desc of LabPaperSearch Use for research")
	assert.Contains(t, p, "If SQLQuery returns SQL_ERROR, fix once then proceed.")
	assert.Contains(t, p, "Action: <one of [LabPaperSearch, SQLQuery, LLMAnswer]>")
	assert.Contains(t, p, "Final Answer:")

	custom := SystemPrompt("You are terse.", reg.Tools()[:1])
	assert.True(t, strings.HasPrefix(custom, "You are terse.\n\nTools:\n"))
	assert.NotContains(t, custom, "SQL_ERROR")
}
