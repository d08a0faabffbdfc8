// Package openrouter implements the chat-completion client used for every
// model invocation. It speaks the OpenAI-compatible chat completions wire
// protocol against OpenRouter: ordered message list in, either assistant
// text or tool-call requests out.
//
// The client is transport only. It performs no retries and keeps no
// conversation state; retry policy and history belong to the caller.
package openrouter

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

	"github.com/sefaria-labs/explorer/internal/log"
)

// ErrNoCredential indicates no API key is configured for the backend.
var ErrNoCredential = errors.New("no OpenRouter API key configured")

// maxErrorDetail bounds how much of an error response body is kept.
const maxErrorDetail = 200

// defaultRequestTimeout bounds one completion call when no timeout is
// configured. Completions with tool results in context can run long, so
// the bound sits well above the probe and retrieval timeouts.
const defaultRequestTimeout = 120 * time.Second

// APIError is a non-2xx reply from the completion backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter: status %d: %s", e.Status, e.Detail)
}

// CredentialSource supplies the bearer credential at call time, so a key
// replaced mid-session applies to the next request without rebuilding the
// client.
type CredentialSource interface {
	Get() (string, bool)
}

// Client calls the OpenRouter chat completions endpoint.
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
	creds      CredentialSource
	logger     log.Logger
}

// Config contains all required parameters for Client.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration // per-call bound; defaults to 120s
	Creds      CredentialSource
	Logger     log.Logger
	HTTPClient *http.Client // optional; defaults to http.DefaultClient
}

func (cfg Config) validate() error {
	if cfg.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if cfg.Model == "" {
		return errors.New("model name is required")
	}
	if cfg.Creds == nil {
		return errors.New("credential source is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    timeout,
		creds:      cfg.Creds,
		logger:     cfg.Logger,
	}, nil
}

// Complete performs one chat completion call with the full ordered history.
// When req.Tools is non-empty the descriptors are advertised verbatim with
// the requested tool-choice mode; the backend decides whether to answer in
// text or request tool invocations.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	key, ok := c.creds.Get()
	if !ok {
		return nil, ErrNoCredential
	}

	payload := chatRequest{
		Model:     c.model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		payload.Tools = req.Tools
		payload.ToolChoice = req.ToolChoice
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	c.logger.Debug("completion call",
		"model", c.model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return nil, &APIError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("completion response has no choices")
	}

	msg := decoded.Choices[0].Message
	return &Completion{
		Content:   msg.text(),
		ToolCalls: msg.ToolCalls,
		Model:     decoded.Model,
	}, nil
}
