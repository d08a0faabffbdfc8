package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sefaria-labs/explorer/internal/log"
)

// probeMaxTokens bounds the probe completion; the reply is discarded, so
// the cheapest possible request is enough.
const probeMaxTokens = 5

// probeDetailLimit bounds how much of an unexpected backend response is
// carried into the result detail.
const probeDetailLimit = 100

// Validator tests candidate keys against the completion backend with a
// minimal probe request.
//
// Validator is stateless and side-effect free: it never mutates the Store,
// keeps no rate-limit state, and is safe for concurrent repeated use.
type Validator struct {
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
	logger     log.Logger
}

// ValidatorConfig contains all required parameters for Validator.
type ValidatorConfig struct {
	BaseURL    string        // completion backend root, e.g. https://openrouter.ai/api/v1
	Model      string        // model used for the probe completion
	Timeout    time.Duration // per-probe bound
	Logger     log.Logger
	HTTPClient *http.Client // optional; defaults to http.DefaultClient
}

// NewValidator creates a new Validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Validator{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    timeout,
		logger:     cfg.Logger,
	}, nil
}

// Validate classifies a candidate key.
//
// Empty or malformed candidates are rejected locally without any network
// I/O. Well-formed candidates trigger exactly one minimal probe completion:
// 200 maps to OK, 401 to Unauthorized, 402 to NoCredit, any other status to
// BackendError with truncated response detail; a missed deadline maps to
// Timeout and any transport failure to NetworkError.
func (v *Validator) Validate(ctx context.Context, candidate string) Result {
	if st := CheckFormat(candidate); st != StatusOK {
		return Result{Status: st}
	}

	probe := map[string]any{
		"model":      v.model,
		"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
		"max_tokens": probeMaxTokens,
	}
	body, err := json.Marshal(probe)
	if err != nil {
		// Static payload; only reachable through programmer error.
		return Result{Status: StatusNetworkError, Detail: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusNetworkError, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+candidate)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Status: StatusOK}
	case http.StatusUnauthorized:
		return Result{Status: StatusUnauthorized}
	case http.StatusPaymentRequired:
		return Result{Status: StatusNoCredit}
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, probeDetailLimit))
		v.logger.Debug("credential probe got unexpected status",
			"status", resp.StatusCode)
		return Result{
			Status: StatusBackendError,
			Detail: fmt.Sprintf("%d - %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}
}

// classifyTransportError separates deadline misses from other transport
// failures.
func classifyTransportError(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Status: StatusTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{Status: StatusTimeout}
	}
	return Result{Status: StatusNetworkError, Detail: err.Error()}
}
