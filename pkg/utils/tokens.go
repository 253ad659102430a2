// Package utils holds small helpers shared by the server and ingestion.
package utils

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ============================================================================
// TOKEN COUNTING
// ============================================================================

// DefaultEncoding approximates local models, which publish no tiktoken
// encoding of their own.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts tokens for usage reporting. A counter without an
// encoding falls back to counting words.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.Mutex
}

// Message is one chat message for CountMessages.
type Message struct {
	Role    string
	Content string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewTokenCounter returns a counter for model. When no encoding can be loaded
// (tiktoken fetches BPE ranks on first use) the counter still works and
// counts words; the error reports why.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := encodingFor(model)
	return &TokenCounter{encoding: enc, model: model}, err
}

// NewWordCounter returns a counter that always counts words.
func NewWordCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}
	encodingCache[model] = enc
	return enc, nil
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return CountWords(text)
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts a chat prompt including per-message overhead, the
// way OpenAI accounts prompt tokens.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	const tokensPerMessage = 3

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += tc.Count(msg.Role)
		total += tc.Count(msg.Content)
	}
	// Every reply is primed with <|start|>assistant<|message|>.
	return total + 3
}

// Model returns the model name the counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// Exact reports whether counts come from a tokenizer rather than words.
func (tc *TokenCounter) Exact() bool {
	return tc != nil && tc.encoding != nil
}

// CountWords is the fallback token estimate.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

var (
	sharedOnce    sync.Once
	sharedCounter *TokenCounter
)

// SharedCounter returns a process-wide counter using DefaultEncoding, loading
// it on first call.
func SharedCounter() *TokenCounter {
	sharedOnce.Do(func() {
		c, err := NewTokenCounter(DefaultEncoding)
		if err != nil {
			slog.Warn("Token encoding unavailable, counting words instead", "error", err)
		}
		sharedCounter = c
	})
	return sharedCounter
}
