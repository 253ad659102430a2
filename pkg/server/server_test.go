package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanlin8901/special-happiness/pkg/agent"
	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/utils"
)

type fakeAgent struct {
	mu        sync.Mutex
	answer    string
	err       error
	questions []string
	ctxErr    error
}

func (f *fakeAgent) Run(ctx context.Context, question string) (agent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return agent.Result{Answer: agent.UnavailableAnswer, Status: agent.StatusFailed}, f.err
	}
	return agent.Result{Answer: f.answer, Status: agent.StatusDone}, nil
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, a Answerer, mutate ...func(*config.ServerConfig)) *httptest.Server {
	t.Helper()
	cfg := config.ServerConfig{}
	cfg.SetDefaults()
	for _, m := range mutate {
		m(&cfg)
	}
	s := NewHTTPServer(cfg, a,
		WithTokenCounter(utils.NewWordCounter("test")),
		WithClock(func() time.Time { return fixedNow }),
	)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLastUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		want     string
		wantErr  bool
	}{
		{
			name: "picks the last user message",
			messages: []ChatMessage{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "first"},
				{Role: "assistant", Content: "reply"},
				{Role: "user", Content: "second"},
				{Role: "assistant", Content: "trailing"},
			},
			want: "second",
		},
		{name: "no user message", messages: []ChatMessage{{Role: "system", Content: "x"}}, wantErr: true},
		{name: "empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastUserMessage(tt.messages)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoUserMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	fa := &fakeAgent{answer: "There are 91 customers."}
	ts := newTestServer(t, fa)

	resp := post(t, ts.URL+"/v1/chat/completions",
		`{"model":"lab-rag","messages":[{"role":"system","content":"hi"},{"role":"user","content":"How many customers?"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	got := decode[ChatCompletion](t, resp)
	assert.True(t, strings.HasPrefix(got.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", got.Object)
	assert.Equal(t, fixedNow.Unix(), got.Created)
	assert.Equal(t, "lab-rag", got.Model)
	require.Len(t, got.Choices, 1)
	assert.Equal(t, 0, got.Choices[0].Index)
	assert.Equal(t, "assistant", got.Choices[0].Message.Role)
	assert.Equal(t, "There are 91 customers.", got.Choices[0].Message.Content)
	assert.Equal(t, "stop", got.Choices[0].FinishReason)

	assert.Equal(t, 4, got.Usage.CompletionTokens)
	assert.Positive(t, got.Usage.PromptTokens)
	assert.Equal(t, got.Usage.PromptTokens+got.Usage.CompletionTokens, got.Usage.TotalTokens)

	assert.Equal(t, []string{"How many customers?"}, fa.questions)
	assert.NoError(t, fa.ctxErr)
}

func TestChatCompletions_Streaming(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{answer: "42"})

	resp := post(t, ts.URL+"/v1/chat/completions",
		`{"model":"lab-rag","stream":true,"messages":[{"role":"user","content":"answer?"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var frames []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			frames = append(frames, line)
		}
	}
	require.NoError(t, sc.Err())
	require.Len(t, frames, 3)

	var first ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	assert.Equal(t, "chat.completion.chunk", first.Object)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Equal(t, "42", first.Choices[0].Delta.Content)
	assert.Nil(t, first.Choices[0].FinishReason)

	var last ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &last))
	assert.Equal(t, first.ID, last.ID)
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
	assert.Empty(t, last.Choices[0].Delta.Content)

	assert.Equal(t, "data: [DONE]", frames[2])
}

func TestChatCompletions_StreamEndsWithDoneBytes(t *testing.T) {
	s := NewHTTPServer(config.ServerConfig{ModelName: "lab-rag", CORSOrigin: "*"}, &fakeAgent{answer: "ok"},
		WithTokenCounter(utils.NewWordCounter("test")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"stream":true,"messages":[{"role":"user","content":"q"}]}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Body.String(), DoneFrame))
}

func TestChatCompletions_StreamDefaultsToFalse(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{answer: "plain"})

	resp := post(t, ts.URL+"/v1/chat/completions", `{"messages":[{"role":"user","content":"q"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ChatCompletion](t, resp)
	assert.Equal(t, "plain", got.Choices[0].Message.Content)
	assert.Equal(t, "lab-rag", got.Model)
}

func TestChatCompletions_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "malformed json", body: `{"messages":`, wantCode: "invalid_json"},
		{name: "no user message", body: `{"messages":[{"role":"assistant","content":"hi"}]}`, wantCode: "no_user_message"},
		{name: "no messages", body: `{"model":"lab-rag"}`, wantCode: "no_user_message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAgent{answer: "unused"}
			ts := newTestServer(t, fa)

			resp := post(t, ts.URL+"/v1/chat/completions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			got := decode[ErrorResponse](t, resp)
			assert.Equal(t, "invalid_request_error", got.Error.Type)
			assert.Equal(t, tt.wantCode, got.Error.Code)
			assert.NotEmpty(t, got.Error.Message)
			assert.Empty(t, fa.questions)
		})
	}
}

func TestChatCompletions_StrictModel(t *testing.T) {
	fa := &fakeAgent{answer: "unused"}
	ts := newTestServer(t, fa, func(c *config.ServerConfig) { c.StrictModel = true })

	resp := post(t, ts.URL+"/v1/chat/completions",
		`{"model":"gpt-4","messages":[{"role":"user","content":"q"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ChatCompletion](t, resp)
	assert.Contains(t, got.Choices[0].Message.Content, `"gpt-4" is not available`)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Empty(t, fa.questions)
}

func TestChatCompletions_LenientModel(t *testing.T) {
	fa := &fakeAgent{answer: "fine"}
	ts := newTestServer(t, fa)

	resp := post(t, ts.URL+"/v1/chat/completions",
		`{"model":"anything","messages":[{"role":"user","content":"q"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ChatCompletion](t, resp)
	assert.Equal(t, "fine", got.Choices[0].Message.Content)
}

func TestChatCompletions_LLMUnavailable(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{err: errors.New("connection refused")})

	resp := post(t, ts.URL+"/v1/chat/completions", `{"messages":[{"role":"user","content":"q"}]}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	got := decode[ErrorResponse](t, resp)
	assert.Equal(t, "api_error", got.Error.Type)
	assert.Equal(t, agent.UnavailableAnswer, got.Error.Message)
}

func TestModels(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{}, func(c *config.ServerConfig) {
		c.ModelName = "northwind-rag"
		c.OwnedBy = "lab-42"
	})

	resp, err := http.Get(ts.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[ModelList](t, resp)
	assert.Equal(t, "list", got.Object)
	require.Len(t, got.Data, 1)
	assert.Equal(t, ModelCard{ID: "northwind-rag", Object: "model", Created: fixedNow.Unix(), OwnedBy: "lab-42"}, got.Data[0])
}

func TestLegacyChat(t *testing.T) {
	t.Run("messages", func(t *testing.T) {
		fa := &fakeAgent{answer: "hello there"}
		ts := newTestServer(t, fa)

		resp := post(t, ts.URL+"/api/chat", `{"model":"m1","messages":[{"role":"user","content":"hi"}]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[LegacyChatResponse](t, resp)
		assert.Equal(t, LegacyChatResponse{
			Model:     "m1",
			CreatedAt: fixedNow.Format(time.RFC3339),
			Message:   ChatMessage{Role: "assistant", Content: "hello there"},
			Done:      true,
		}, got)
		assert.Equal(t, []string{"hi"}, fa.questions)
	})

	t.Run("prompt", func(t *testing.T) {
		fa := &fakeAgent{answer: "an answer"}
		ts := newTestServer(t, fa)

		resp := post(t, ts.URL+"/api/chat", `{"prompt":"what is RAG?"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, PromptResponse{Answer: "an answer"}, decode[PromptResponse](t, resp))
		assert.Equal(t, []string{"what is RAG?"}, fa.questions)
	})

	t.Run("neither", func(t *testing.T) {
		ts := newTestServer(t, &fakeAgent{})

		resp := post(t, ts.URL+"/api/chat", `{"model":"m1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "missing_input", decode[ErrorResponse](t, resp).Error.Code)
	})

	t.Run("llm unavailable", func(t *testing.T) {
		ts := newTestServer(t, &fakeAgent{err: errors.New("down")})

		resp := post(t, ts.URL+"/api/chat", `{"prompt":"q"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{}, func(c *config.ServerConfig) { c.CORSOrigin = "http://ui.local" })

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://ui.local", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/chat/completions", nil)
	require.NoError(t, err)
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer pre.Body.Close()
	assert.Equal(t, http.StatusNoContent, pre.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	cfg := config.ServerConfig{}
	cfg.SetDefaults()
	s := NewHTTPServer(cfg, &fakeAgent{answer: "x"},
		WithMetrics(m),
		WithTokenCounter(utils.NewWordCounter("test")))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer m.Shutdown(context.Background())

	post(t, ts.URL+"/v1/chat/completions", `{"messages":[{"role":"user","content":"q"}]}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "labrag_http_requests_total")
	assert.Contains(t, string(body), `route="/v1/chat/completions"`)
}

func TestAnswer_DetachedFromClientCancel(t *testing.T) {
	fa := &fakeAgent{answer: "done"}
	s := NewHTTPServer(config.ServerConfig{}, fa, WithTokenCounter(utils.NewWordCounter("test")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := s.answer(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "done", answer)
	assert.NoError(t, fa.ctxErr)
}
