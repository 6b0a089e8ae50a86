// Package genai wraps the external text-generation collaborator behind a small
// chat-completion interface. Transient upstream failures are retried with
// exponential backoff; once the attempt cap is exhausted the caller receives a
// hard UPSTREAM_GENERATION_FAILURE.
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

	"github.com/sethvargo/go-retry"

	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.openai.com/v1"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("generation base URL is required")

// ChatMessage is one entry of the ordered history sent upstream.
type ChatMessage struct {
	Role    enums.MessageRole `json:"role"`
	Content string            `json:"content"`
}

// Request carries the system instructions, history, and generation limits.
type Request struct {
	System    string
	Messages  []ChatMessage
	MaxTokens int
}

// Response holds the generated text and token accounting.
type Response struct {
	Text       string
	TokensUsed int
}

// Generator is the surface handlers depend on; tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Client is an HTTP chat-completions Generator.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	maxAttempts int
	retryBase   time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured completions base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the generation client from config.
func NewClient(cfg config.GenerationConfig, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:     strings.TrimSpace(cfg.BaseURL),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.maxAttempts <= 0 {
		client.maxAttempts = 3
	}
	if client.retryBase <= 0 {
		client.retryBase = time.Second
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}

	return client, nil
}

// Generate calls the completions endpoint, retrying transient failures with
// exponential backoff up to the configured attempt cap.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "generation client not configured")
	}
	if len(req.Messages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generation request requires at least one message")
	}

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewExponential(c.retryBase))

	var out *Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.generateOnce(ctx, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamGeneration, err, "generation attempts exhausted")
	}
	return out, nil
}

func (c *Client) generateOnce(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, map[string]string{"role": msg.Role.String(), "content": msg.Content})
	}

	payload, err := json.Marshal(map[string]any{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages":   messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute generation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("generation response contained no choices")
	}

	return &Response{
		Text:       apiResp.Choices[0].Message.Content,
		TokensUsed: apiResp.Usage.PromptTokens + apiResp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
