// Package genai is a thin client for the generative-language provider used
// for relevance scoring and verdict text. Callers are expected to treat
// every error as "provider unavailable" and fall back locally; the sentinel
// errors only exist so fallbacks can be labeled.
package genai

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
)

// Provider failure classes. All of them mean "use the fallback"; none should
// propagate past the stage that called the provider.
var (
	ErrUnconfigured = errors.New("genai: no API key configured")
	ErrBlocked      = errors.New("genai: response blocked by provider safety filters")
	ErrTruncated    = errors.New("genai: response truncated at token limit")
	ErrEmpty        = errors.New("genai: provider returned empty text")
)

// HTTPDoer is the minimal HTTP client surface, injectable for tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the provider's generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient HTTPDoer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = u }
}

// NewClient creates a provider client. An empty apiKey is allowed; calls
// then fail with ErrUnconfigured so stages degrade instead of erroring out
// at construction.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateText sends the prompt and returns the provider's text, mapping
// every unusable outcome (blocked, truncated, empty, malformed) onto the
// package's failure classes.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrUnconfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("genai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genai: status %d", resp.StatusCode)
	}

	var payload generateResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("genai: parse response: %w", err)
	}

	if payload.PromptFeedback.BlockReason != "" {
		return "", ErrBlocked
	}
	if len(payload.Candidates) == 0 {
		return "", ErrEmpty
	}

	cand := payload.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "RECITATION":
		return "", ErrBlocked
	case "MAX_TOKENS":
		return "", ErrTruncated
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmpty
	}

	return text, nil
}
