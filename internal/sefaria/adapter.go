package sefaria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sefaria-labs/explorer/internal/log"
)

// Adapter dispatches tool-call requests against the Sefaria REST API.
//
// Every outcome is a textual payload handed back to the model: successful
// responses are returned verbatim (pass-through, no re-parsing of the
// backend's body) and every failure mode (unknown tool, malformed
// arguments, transport error) is converted to a structured error payload
// instead of a Go error, so dispatch never takes the orchestration loop
// down even with the retrieval backend fully degraded.
type Adapter struct {
	registry   *Registry
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     log.Logger
}

// AdapterConfig contains all required parameters for Adapter.
type AdapterConfig struct {
	Registry   *Registry
	BaseURL    string        // Sefaria API root, e.g. https://www.sefaria.org/api
	Timeout    time.Duration // per-call bound; defaults to 30s
	Logger     log.Logger
	HTTPClient *http.Client // optional; defaults to http.DefaultClient
}

// NewAdapter creates a new Adapter.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{
		registry:   cfg.Registry,
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		timeout:    timeout,
		logger:     cfg.Logger,
	}, nil
}

// Invoke executes one tool call and returns the result text.
//
// Unknown names produce the structured unknown-tool payload. Malformed
// argument payloads decode to the zero input, letting per-tool defaults
// apply and the backend report any missing required argument itself.
func (a *Adapter) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	desc, ok := a.registry.Lookup(name)
	if !ok {
		a.logger.Warn("unknown tool requested", "tool", name)
		return errorPayload(fmt.Sprintf("Unknown tool: %s", name))
	}

	requestURL, err := a.buildURL(desc.Name, args)
	if err != nil {
		return errorPayload(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return errorPayload(err.Error())
	}

	a.logger.Debug("dispatching tool call", "tool", name, "url", requestURL)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("tool call failed", "tool", name, "error", err)
		return errorPayload(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.logger.Warn("reading tool response failed", "tool", name, "error", err)
		return errorPayload(err.Error())
	}

	return string(body)
}

// buildURL maps a tool call to its Sefaria endpoint.
func (a *Adapter) buildURL(name string, args json.RawMessage) (string, error) {
	switch name {
	case ToolGetText:
		var in GetTextInput
		decodeArgs(args, &in)
		u := a.baseURL + "/v3/texts/" + url.PathEscape(in.Reference)
		if in.VersionLanguage != "" {
			u += "?version=" + url.QueryEscape(in.VersionLanguage)
		}
		return u, nil

	case ToolTextSearch:
		var in TextSearchInput
		decodeArgs(args, &in)
		if in.Size <= 0 {
			in.Size = defaultResultCount
		}
		return a.baseURL + "/search-wrapper/text/" + url.PathEscape(in.Query) +
			"?size=" + strconv.Itoa(in.Size), nil

	case ToolSemanticSearch:
		var in SemanticSearchInput
		decodeArgs(args, &in)
		return a.baseURL + "/search/text/" + url.PathEscape(in.Query), nil

	case ToolGetLinks:
		var in GetLinksInput
		decodeArgs(args, &in)
		if in.WithText == "" {
			in.WithText = "0"
		}
		return a.baseURL + "/links/" + url.PathEscape(in.Reference) +
			"?with_text=" + url.QueryEscape(in.WithText), nil

	case ToolTopicDetails:
		var in TopicDetailsInput
		decodeArgs(args, &in)
		params := url.Values{}
		if in.WithLinks {
			params.Set("with_links", "1")
		}
		if in.WithRefs {
			params.Set("with_refs", "1")
		}
		u := a.baseURL + "/topics/" + url.PathEscape(in.TopicSlug)
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		return u, nil

	case ToolClarifyName:
		var in ClarifyNameInput
		decodeArgs(args, &in)
		if in.Limit <= 0 {
			in.Limit = defaultResultCount
		}
		return a.baseURL + "/name/" + url.PathEscape(in.Name) +
			"?limit=" + strconv.Itoa(in.Limit), nil

	default:
		// Lookup succeeded but no endpoint mapping exists; registry and
		// adapter are out of sync.
		return "", fmt.Errorf("no endpoint mapping for tool: %s", name)
	}
}

// decodeArgs fills in from raw JSON, leaving the zero value on malformed
// payloads so per-tool defaults apply.
func decodeArgs(args json.RawMessage, in any) {
	if len(args) == 0 {
		return
	}
	_ = json.Unmarshal(args, in)
}

// errorPayload renders a structured error for model consumption.
func errorPayload(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(out)
}
