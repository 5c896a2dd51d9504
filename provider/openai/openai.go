package openai_provider

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

// ErrUnsupportedInterface signals that the modern chat interface is not
// available for the configured model or endpoint. The client treats it as a
// compatibility condition and retries once through the legacy completions
// interface; any other error propagates unchanged.
var ErrUnsupportedInterface = errors.New("chat interface unavailable")

// Usage carries token accounting from the API response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the raw digest text plus observability metadata.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Client implements the completion contract using OpenAI's HTTP API. Both the
// chat interface and the legacy text-completions interface are supported; the
// chat interface is always attempted first.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type legacyRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type legacyResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Complete sends the instruction document and user message to the API. On the
// specific interface-unavailable failure it falls back to the legacy
// completions shape; every other error is returned to the caller.
func (c *Client) Complete(ctx context.Context, system, user string) (Completion, error) {
	out, err := c.completeChat(ctx, system, user)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrUnsupportedInterface) {
		return Completion{}, err
	}
	return c.completeLegacy(ctx, system, user)
}

func (c *Client) completeChat(ctx context.Context, system, user string) (Completion, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &resp); err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no choices in chat response")
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Completion{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
		Usage: resp.Usage,
	}, nil
}

func (c *Client) completeLegacy(ctx context.Context, system, user string) (Completion, error) {
	body := legacyRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Prompt:      system + "\n\n" + user,
	}
	var resp legacyResponse
	if err := c.post(ctx, "/v1/completions", body, &resp); err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no choices in completion response")
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Completion{
		Text:  strings.TrimSpace(resp.Choices[0].Text),
		Model: model,
		Usage: resp.Usage,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if unsupportedInterface(resp.StatusCode, raw) {
			return fmt.Errorf("%s returned %d: %w", path, resp.StatusCode, ErrUnsupportedInterface)
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// unsupportedInterface distinguishes "this endpoint/model pairing does not
// exist" from genuine request failures such as auth or rate limiting.
func unsupportedInterface(status int, raw []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err != nil {
		return false
	}
	msg := strings.ToLower(ae.Error.Message)
	return ae.Error.Code == "model_not_supported" ||
		strings.Contains(msg, "not supported in the v1/chat/completions endpoint") ||
		strings.Contains(msg, "this is not a chat model")
}
