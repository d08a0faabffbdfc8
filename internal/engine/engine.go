// Package engine drives the multi-round tool-call protocol between the
// user, the completion backend and the retrieval adapter.
//
// One turn is: user text in, completion call with the full history and the
// advertised tool catalog, sequential dispatch of any requested tool calls,
// one finalization completion call, assistant text out. The engine also
// owns the credential-update command path, which bypasses the session
// state machine's message-type checks in every state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/sefaria-labs/explorer/internal/credential"
	"github.com/sefaria-labs/explorer/internal/log"
	"github.com/sefaria-labs/explorer/internal/openrouter"
	"github.com/sefaria-labs/explorer/internal/persona"
	"github.com/sefaria-labs/explorer/internal/session"
)

// SetKeyCommand is the command prefix intercepted before normal turn
// processing and routed to the credential-update path.
const SetKeyCommand = "/setkey"

// defaultMaxTokens is the output token ceiling sent with every completion
// request. It is a backend request parameter, not local truncation.
const defaultMaxTokens = 4096

// Backend performs one chat completion call.
// Implemented by *openrouter.Client.
type Backend interface {
	Complete(ctx context.Context, req openrouter.Request) (*openrouter.Completion, error)
}

// Dispatcher executes one tool call, returning result text in every case.
// Implemented by *sefaria.Adapter.
type Dispatcher interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) string
}

// Catalog advertises the tool set to the completion backend.
// Implemented by *sefaria.Registry.
type Catalog interface {
	Specs() []openrouter.Tool
}

// Validator classifies a candidate credential.
// Implemented by *credential.Validator.
type Validator interface {
	Validate(ctx context.Context, candidate string) credential.Result
}

// KeyStore holds the process-wide active credential.
// Implemented by *credential.Store.
type KeyStore interface {
	Get() (string, bool)
	Set(candidate string) error
}

// Config contains all required parameters for Engine.
type Config struct {
	Backend    Backend
	Dispatcher Dispatcher
	Catalog    Catalog
	Validator  Validator
	Store      KeyStore
	Logger     log.Logger

	// MaxTokens bounds each completion's output; zero uses defaultMaxTokens.
	MaxTokens int

	// Limiter proactively rate-limits completion calls (nil = default:
	// 10 requests/sec sustained, burst of 30).
	Limiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Dispatcher == nil {
		return errors.New("dispatcher is required")
	}
	if cfg.Catalog == nil {
		return errors.New("catalog is required")
	}
	if cfg.Validator == nil {
		return errors.New("validator is required")
	}
	if cfg.Store == nil {
		return errors.New("key store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Engine is the session orchestration and tool-call mediation core.
//
// Engine is stateless across turns; all conversational state lives in the
// Session. Safe for concurrent use across sessions: the only shared
// mutable state is the injected key store, which synchronizes internally.
type Engine struct {
	backend    Backend
	dispatcher Dispatcher
	catalog    Catalog
	validator  Validator
	store      KeyStore
	limiter    *rate.Limiter
	maxTokens  int
	logger     log.Logger
}

// New creates a new Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	return &Engine{
		backend:    cfg.Backend,
		dispatcher: cfg.Dispatcher,
		catalog:    cfg.Catalog,
		validator:  cfg.Validator,
		store:      cfg.Store,
		limiter:    limiter,
		maxTokens:  maxTokens,
		logger:     cfg.Logger,
	}, nil
}

// HandleInput is the UI-facing entry for one line of user input. It claims
// the session's turn slot, intercepts the credential-update command in any
// state, accepts a bare key paste while credential setup is pending, and
// routes ordinary chat through the state machine into RunTurn.
func (e *Engine) HandleInput(ctx context.Context, sess *session.Session, text string) (string, error) {
	sess.BeginTurn()
	defer sess.EndTurn()

	trimmed := strings.TrimSpace(text)

	if trimmed == SetKeyCommand || strings.HasPrefix(trimmed, SetKeyCommand+" ") {
		return e.handleSetKey(ctx, sess, trimmed)
	}

	if sess.State() == session.StateNeedsCredential && strings.HasPrefix(trimmed, credential.Prefix) {
		return e.setCredential(ctx, sess, trimmed)
	}

	if err := sess.EnsureActive(); err != nil {
		return "", err
	}
	return e.RunTurn(ctx, sess, text)
}

// SelectPersona resolves the key (unknown keys fall back to the
// generalist), seeds the session and returns the chosen persona for the UI
// to present.
func (e *Engine) SelectPersona(sess *session.Session, key string) (persona.Persona, error) {
	p := persona.Get(key)
	if err := sess.SelectPersona(p.Key, p.SystemPrompt); err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

// RunTurn performs one user turn against an active session.
//
// Callers must serialize turns per session (HandleInput does this via
// BeginTurn). Any completion-backend failure aborts the turn; history
// already appended is retained and no retry happens at this layer.
func (e *Engine) RunTurn(ctx context.Context, sess *session.Session, userText string) (string, error) {
	if err := sess.EnsureActive(); err != nil {
		return "", err
	}

	sess.Append(session.UserMessage(userText))
	sess.Prune()

	// First round: full history, tool catalog, automatic tool selection.
	comp, err := e.complete(ctx, sess.History(), e.catalog.Specs())
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}

	if len(comp.ToolCalls) == 0 {
		sess.Append(session.AssistantMessage(comp.Content, nil))
		return comp.Content, nil
	}

	// Record the assistant message with its pending calls, then answer
	// each call sequentially: every tool result must land in history
	// before the finalization call, in the order the backend issued the
	// requests.
	calls := make([]session.ToolCall, len(comp.ToolCalls))
	for i, tc := range comp.ToolCalls {
		calls[i] = session.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: openrouter.RawArguments(tc),
		}
	}
	sess.Append(session.AssistantMessage(comp.Content, calls))

	for _, call := range calls {
		e.logger.Info("dispatching tool call",
			"session_id", sess.ID(), "tool", call.Name, "call_id", call.ID)
		result := e.dispatcher.Invoke(ctx, call.Name, call.Arguments)
		sess.Append(session.ToolResultMessage(call.ID, result))
	}

	// Finalization round: no tools offered. Exactly one; if the backend
	// still requests tools here, its text is returned as-is.
	final, err := e.complete(ctx, sess.History(), nil)
	if err != nil {
		return "", fmt.Errorf("finalization call failed: %w", err)
	}

	sess.Append(session.AssistantMessage(final.Content, nil))
	return final.Content, nil
}

// complete performs one rate-limited completion call.
func (e *Engine) complete(ctx context.Context, history []session.Message, tools []openrouter.Tool) (*openrouter.Completion, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := openrouter.Request{
		Messages:  toWire(history),
		MaxTokens: e.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}
	return e.backend.Complete(ctx, req)
}

// handleSetKey processes the credential-update command. Validation
// failures are conversational replies, not errors: the store stays
// untouched and the session state is unchanged.
func (e *Engine) handleSetKey(ctx context.Context, sess *session.Session, trimmed string) (string, error) {
	parts := strings.Fields(trimmed)
	if len(parts) < 2 {
		return "Please provide an API key: `" + SetKeyCommand + " sk-or-v1-your-key-here`", nil
	}
	return e.setCredential(ctx, sess, parts[1])
}

// setCredential validates a candidate key and, only on success, persists
// it and advances a credential-pending session.
func (e *Engine) setCredential(ctx context.Context, sess *session.Session, candidate string) (string, error) {
	result := e.validator.Validate(ctx, candidate)
	if !result.Valid() {
		e.logger.Info("credential rejected",
			"session_id", sess.ID(), "status", result.Status)
		return "Invalid API key: " + result.Message(), nil
	}

	if err := e.store.Set(candidate); err != nil {
		e.logger.Error("persisting credential failed",
			"session_id", sess.ID(), "error", err)
		return "Failed to save API key. Check file permissions.", nil
	}

	sess.CredentialConfigured()
	return "API key saved successfully!\n\nKey: " + credential.Mask(candidate), nil
}

// toWire converts session history to the completion backend's message
// format.
func toWire(history []session.Message) []openrouter.Message {
	out := make([]openrouter.Message, len(history))
	for i, msg := range history {
		wire := openrouter.Message{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, openrouter.ToolCall{
				ID:   call.ID,
				Type: "function",
				Function: openrouter.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		out[i] = wire
	}
	return out
}
