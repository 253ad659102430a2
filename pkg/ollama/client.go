// Package ollama is the HTTP client shared by the Ollama LLM and embedder.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alanlin8901/special-happiness/pkg/httpclient"
)

// DefaultBaseURL is Ollama's default listen address.
const DefaultBaseURL = "http://localhost:11434"

// Client posts JSON to an Ollama server.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
}

// NewClient creates a client. A zero timeout leaves requests bounded only by
// their context.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: timeout,
			}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithBaseDelay(2*time.Second),
		),
	}
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends payload to endpoint and decodes the reply into out. Ollama
// reports failures as {"error": "..."}; that message is surfaced as is.
func (c *Client) Post(ctx context.Context, endpoint string, payload, out any) error {
	err := c.httpClient.DoJSON(ctx, http.MethodPost, c.baseURL+endpoint, payload, out)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if msg := errorMessage(statusErr.Body); msg != "" {
			return fmt.Errorf("ollama %s: status %d: %s: %w", endpoint, statusErr.StatusCode, msg, err)
		}
	}
	return fmt.Errorf("ollama %s: %w", endpoint, err)
}

// errorMessage pulls the "error" field out of an Ollama error body without
// failing on non-JSON bodies.
func errorMessage(body string) string {
	var reply struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return ""
	}
	return reply.Error
}
