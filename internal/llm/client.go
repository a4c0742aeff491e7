// Package llm provides a minimal client for an OpenAI-compatible hosted
// chat-completion endpoint. One call, one completion: no streaming, no tool
// calling, no structured output contract.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/animoa/animoa-backend/internal/config"
)

// Message is one entry of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Roles accepted by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when the endpoint answers 200 with no choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Client issues chat-completion requests. It is a process-wide singleton, safe
// for concurrent use: every call is a complete, independent request/response
// pair with no held state.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

// New constructs a Client from configuration.
func New(cfg config.LLMConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        &http.Client{Timeout: cfg.Timeout},
	}
}

// completionRequest is the wire format of the request body.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// completionResponse is the subset of the response body we consume.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the ordered message list and returns the single text
// completion verbatim. The configured default temperature is used.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.CompleteWithTemperature(ctx, messages, c.temperature)
}

// CompleteWithTemperature is Complete with an explicit sampling temperature.
func (c *Client) CompleteWithTemperature(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("llm: no messages")
	}

	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var cr completionResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if cr.Error != nil && cr.Error.Message != "" {
			return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, cr.Error.Message)
		}
		return "", fmt.Errorf("llm: status %d", resp.StatusCode)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return cr.Choices[0].Message.Content, nil
}

// Completer is the narrow contract services depend on, so tests can stub the
// endpoint without HTTP.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteWithTemperature(ctx context.Context, messages []Message, temperature float64) (string, error)
}

var _ Completer = (*Client)(nil)

// WithTimeout returns a shallow copy of the client using the given timeout.
// Useful for call sites with tighter latency budgets than the default.
func (c *Client) WithTimeout(d time.Duration) *Client {
	cp := *c
	cp.http = &http.Client{Timeout: d}
	return &cp
}
