package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/sefaria-labs/explorer/internal/credential"
	"github.com/sefaria-labs/explorer/internal/log"
	"github.com/sefaria-labs/explorer/internal/openrouter"
	"github.com/sefaria-labs/explorer/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend replays a scripted sequence of completions, recording every
// request it receives.
type fakeBackend struct {
	script   []func() (*openrouter.Completion, error)
	requests []openrouter.Request
}

func (b *fakeBackend) Complete(ctx context.Context, req openrouter.Request) (*openrouter.Completion, error) {
	b.requests = append(b.requests, req)
	if len(b.script) == 0 {
		return nil, errors.New("unexpected completion call")
	}
	next := b.script[0]
	b.script = b.script[1:]
	return next()
}

func reply(content string, calls ...openrouter.ToolCall) func() (*openrouter.Completion, error) {
	return func() (*openrouter.Completion, error) {
		return &openrouter.Completion{Content: content, ToolCalls: calls}, nil
	}
}

func fail(err error) func() (*openrouter.Completion, error) {
	return func() (*openrouter.Completion, error) { return nil, err }
}

type invocation struct {
	name string
	args string
}

// fakeDispatcher records invocations and answers each with a payload
// derived from the call.
type fakeDispatcher struct {
	calls []invocation
}

func (d *fakeDispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	d.calls = append(d.calls, invocation{name: name, args: string(args)})
	return fmt.Sprintf(`{"result": "%s #%d"}`, name, len(d.calls))
}

type fakeCatalog struct{}

func (fakeCatalog) Specs() []openrouter.Tool {
	return []openrouter.Tool{{
		Type:     "function",
		Function: openrouter.ToolFunction{Name: "get_text", Parameters: map[string]any{"type": "object"}},
	}}
}

type fakeValidator struct {
	result credential.Result
	calls  int
}

func (v *fakeValidator) Validate(ctx context.Context, candidate string) credential.Result {
	v.calls++
	return v.result
}

type fakeStore struct {
	value   string
	failSet bool
}

func (s *fakeStore) Get() (string, bool) { return s.value, s.value != "" }

func (s *fakeStore) Set(candidate string) error {
	if s.failSet {
		return credential.ErrPersist
	}
	s.value = candidate
	return nil
}

type fixture struct {
	engine     *Engine
	backend    *fakeBackend
	dispatcher *fakeDispatcher
	validator  *fakeValidator
	store      *fakeStore
}

func newFixture(t *testing.T, script ...func() (*openrouter.Completion, error)) *fixture {
	t.Helper()
	backend := &fakeBackend{script: script}
	dispatcher := &fakeDispatcher{}
	validator := &fakeValidator{result: credential.Result{Status: credential.StatusOK}}
	store := &fakeStore{value: "sk-or-v1-existing"}

	eng, err := New(Config{
		Backend:    backend,
		Dispatcher: dispatcher,
		Catalog:    fakeCatalog{},
		Validator:  validator,
		Store:      store,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{engine: eng, backend: backend, dispatcher: dispatcher, validator: validator, store: store}
}

func activeSession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(session.Config{HasCredential: true})
	if err := sess.SelectPersona("generalist", "You are a helpful guide."); err != nil {
		t.Fatalf("SelectPersona() error = %v", err)
	}
	return sess
}

func toolCall(id, name, args string) openrouter.ToolCall {
	return openrouter.ToolCall{
		ID:       id,
		Type:     "function",
		Function: openrouter.FunctionCall{Name: name, Arguments: args},
	}
}

func TestRunTurnPlainAnswer(t *testing.T) {
	f := newFixture(t, reply("The verse opens the Torah."))
	sess := activeSession(t)

	got, err := f.engine.RunTurn(context.Background(), sess, "What is Genesis 1:1?")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got != "The verse opens the Torah." {
		t.Errorf("RunTurn() = %q", got)
	}
	if len(f.backend.requests) != 1 {
		t.Fatalf("backend calls = %d, want 1 (no finalization without tool calls)", len(f.backend.requests))
	}
	if len(f.dispatcher.calls) != 0 {
		t.Errorf("dispatcher calls = %d, want 0", len(f.dispatcher.calls))
	}

	history := sess.History()
	wantRoles := []session.Role{session.RoleSystem, session.RoleUser, session.RoleAssistant}
	if len(history) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantRoles))
	}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Errorf("history[%d].Role = %v, want %v", i, history[i].Role, want)
		}
	}
}

func TestRunTurnToolMediation(t *testing.T) {
	f := newFixture(t,
		reply("",
			toolCall("call_1", "get_text", `{"reference": "Genesis 1:1"}`),
			toolCall("call_2", "text_search", `{"query": "bereshit"}`),
		),
		reply("Here is what the sources say."),
	)
	sess := activeSession(t)

	got, err := f.engine.RunTurn(context.Background(), sess, "Show me Genesis 1:1 and related passages")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got != "Here is what the sources say." {
		t.Errorf("RunTurn() = %q", got)
	}

	// Every requested call is answered, in backend order, with the raw
	// argument payloads.
	if len(f.dispatcher.calls) != 2 {
		t.Fatalf("dispatcher calls = %d, want 2", len(f.dispatcher.calls))
	}
	if f.dispatcher.calls[0].name != "get_text" || f.dispatcher.calls[0].args != `{"reference": "Genesis 1:1"}` {
		t.Errorf("first invocation = %+v", f.dispatcher.calls[0])
	}
	if f.dispatcher.calls[1].name != "text_search" {
		t.Errorf("second invocation = %+v", f.dispatcher.calls[1])
	}

	// First round offers the catalog; the finalization round offers none.
	if len(f.backend.requests) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(f.backend.requests))
	}
	if len(f.backend.requests[0].Tools) == 0 || f.backend.requests[0].ToolChoice != "auto" {
		t.Error("first round must advertise the tool catalog with automatic choice")
	}
	if len(f.backend.requests[1].Tools) != 0 {
		t.Error("finalization round must offer no tools")
	}

	history := sess.History()
	wantRoles := []session.Role{
		session.RoleSystem,
		session.RoleUser,
		session.RoleAssistant, // carries the pending calls
		session.RoleTool,
		session.RoleTool,
		session.RoleAssistant, // final answer
	}
	if len(history) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantRoles))
	}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Errorf("history[%d].Role = %v, want %v", i, history[i].Role, want)
		}
	}
	if history[3].ToolCallID != "call_1" || history[4].ToolCallID != "call_2" {
		t.Error("tool results must land in the order the backend requested them")
	}
	if len(history[2].ToolCalls) != 2 {
		t.Errorf("assistant message carries %d calls, want 2", len(history[2].ToolCalls))
	}

	// The finalization request must include the tool results.
	finalMsgs := f.backend.requests[1].Messages
	if finalMsgs[len(finalMsgs)-1].Role != "tool" {
		t.Error("finalization request must carry the tool results")
	}
}

// TestRunTurnFinalizationIsSingle verifies the finalization reply is
// returned as-is even when it still asks for tools; no third round runs.
func TestRunTurnFinalizationIsSingle(t *testing.T) {
	f := newFixture(t,
		reply("", toolCall("call_1", "get_text", `{}`)),
		reply("Partial answer anyway.", toolCall("call_9", "get_text", `{}`)),
	)
	sess := activeSession(t)

	got, err := f.engine.RunTurn(context.Background(), sess, "hello")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got != "Partial answer anyway." {
		t.Errorf("RunTurn() = %q", got)
	}
	if len(f.backend.requests) != 2 {
		t.Errorf("backend calls = %d, want exactly 2", len(f.backend.requests))
	}
	// The stray calls in the finalization reply are never dispatched.
	if len(f.dispatcher.calls) != 1 {
		t.Errorf("dispatcher calls = %d, want 1", len(f.dispatcher.calls))
	}
}

func TestRunTurnEmptyArgumentsBecomeObject(t *testing.T) {
	f := newFixture(t,
		reply("", toolCall("call_1", "get_text", "")),
		reply("done"),
	)
	sess := activeSession(t)

	if _, err := f.engine.RunTurn(context.Background(), sess, "hi"); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if f.dispatcher.calls[0].args != "{}" {
		t.Errorf("empty arguments dispatched as %q, want {}", f.dispatcher.calls[0].args)
	}
}

// errorDispatcher answers every call with a structured error payload, the
// way the retrieval adapter reports a degraded backend.
type errorDispatcher struct{}

func (errorDispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	return `{"error": "connection refused"}`
}

// TestRunTurnToolFailureStillFinalizes verifies a failed retrieval does
// not abort the turn: the error payload becomes the tool result and the
// finalization round runs.
func TestRunTurnToolFailureStillFinalizes(t *testing.T) {
	backend := &fakeBackend{script: []func() (*openrouter.Completion, error){
		reply("", toolCall("call_1", "get_text", `{"reference": "Genesis 1:1"}`)),
		reply("I could not reach the library just now."),
	}}
	eng, err := New(Config{
		Backend:    backend,
		Dispatcher: errorDispatcher{},
		Catalog:    fakeCatalog{},
		Validator:  &fakeValidator{},
		Store:      &fakeStore{value: "sk-or-v1-existing"},
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess := activeSession(t)

	got, err := eng.RunTurn(context.Background(), sess, "Show me Genesis 1:1")
	if err != nil {
		t.Fatalf("RunTurn() error = %v, want the turn to survive the tool failure", err)
	}
	if got != "I could not reach the library just now." {
		t.Errorf("RunTurn() = %q", got)
	}
	if len(backend.requests) != 2 {
		t.Errorf("backend calls = %d, want finalization to run", len(backend.requests))
	}

	history := sess.History()
	toolMsg := history[3]
	if toolMsg.Role != session.RoleTool || toolMsg.Content != `{"error": "connection refused"}` {
		t.Errorf("tool result = %+v, want the error payload verbatim", toolMsg)
	}
}

func TestRunTurnBackendFailure(t *testing.T) {
	f := newFixture(t, fail(errors.New("backend down")))
	sess := activeSession(t)

	_, err := f.engine.RunTurn(context.Background(), sess, "hello")
	if err == nil {
		t.Fatal("RunTurn() should surface the backend failure")
	}

	// The user message stays; the turn is not rolled back.
	history := sess.History()
	if len(history) != 2 || history[1].Role != session.RoleUser {
		t.Errorf("history after failed turn = %d messages, want system + user", len(history))
	}
}

func TestRunTurnFinalizationFailureKeepsToolResults(t *testing.T) {
	f := newFixture(t,
		reply("", toolCall("call_1", "get_text", `{}`)),
		fail(errors.New("backend down")),
	)
	sess := activeSession(t)

	_, err := f.engine.RunTurn(context.Background(), sess, "hello")
	if err == nil {
		t.Fatal("RunTurn() should surface the finalization failure")
	}

	history := sess.History()
	wantRoles := []session.Role{session.RoleSystem, session.RoleUser, session.RoleAssistant, session.RoleTool}
	if len(history) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d (partial turn retained)", len(history), len(wantRoles))
	}
}

func TestRunTurnRefusesInactiveSessions(t *testing.T) {
	f := newFixture(t)

	needsKey := session.New(session.Config{HasCredential: false})
	if _, err := f.engine.RunTurn(context.Background(), needsKey, "hi"); !errors.Is(err, session.ErrNeedsCredential) {
		t.Errorf("RunTurn() without credential = %v, want ErrNeedsCredential", err)
	}

	awaiting := session.New(session.Config{HasCredential: true})
	if _, err := f.engine.RunTurn(context.Background(), awaiting, "hi"); !errors.Is(err, session.ErrNoPersona) {
		t.Errorf("RunTurn() without persona = %v, want ErrNoPersona", err)
	}

	if len(f.backend.requests) != 0 {
		t.Errorf("refused turns made %d backend calls, want 0", len(f.backend.requests))
	}
}

func TestHandleInputSetKeySuccess(t *testing.T) {
	f := newFixture(t)
	f.store.value = ""
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "/setkey sk-or-v1-0123456789abcdef0123456789")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, "saved successfully") {
		t.Errorf("reply = %q, want a success confirmation", got)
	}
	if strings.Contains(got, "sk-or-v1-0123456789abcdef0123456789") {
		t.Error("confirmation leaked the full key")
	}
	if f.store.value != "sk-or-v1-0123456789abcdef0123456789" {
		t.Errorf("store value = %q, want the new key", f.store.value)
	}
	if sess.State() != session.StateAwaitingPersona {
		t.Errorf("state = %v, want AwaitingPersona", sess.State())
	}
}

func TestHandleInputSetKeyInvalid(t *testing.T) {
	f := newFixture(t)
	f.validator.result = credential.Result{Status: credential.StatusUnauthorized}
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "/setkey sk-or-v1-bogus")
	if err != nil {
		t.Fatalf("HandleInput() error = %v (rejections are conversational)", err)
	}
	if !strings.Contains(got, "Invalid API key") {
		t.Errorf("reply = %q, want a rejection", got)
	}
	if f.store.value != "sk-or-v1-existing" {
		t.Errorf("store value = %q, want untouched", f.store.value)
	}
	if sess.State() != session.StateNeedsCredential {
		t.Errorf("state = %v, want still NeedsCredential", sess.State())
	}
}

func TestHandleInputSetKeyUsage(t *testing.T) {
	f := newFixture(t)
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "/setkey")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, SetKeyCommand) {
		t.Errorf("reply = %q, want usage guidance", got)
	}
	if f.validator.calls != 0 {
		t.Errorf("usage reply triggered %d validations, want 0", f.validator.calls)
	}
}

func TestHandleInputSetKeyPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failSet = true
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "/setkey sk-or-v1-valid-key")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, "Failed to save API key") {
		t.Errorf("reply = %q, want a persist failure notice", got)
	}
	if sess.State() != session.StateNeedsCredential {
		t.Errorf("state = %v, want still NeedsCredential", sess.State())
	}
}

// TestHandleInputSetKeyMidConversation verifies the command works in an
// active session without disturbing the conversation.
func TestHandleInputSetKeyMidConversation(t *testing.T) {
	f := newFixture(t)
	sess := activeSession(t)
	before := sess.Len()

	got, err := f.engine.HandleInput(context.Background(), sess, "/setkey sk-or-v1-replacement-key-value")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, "saved successfully") {
		t.Errorf("reply = %q", got)
	}
	if f.store.value != "sk-or-v1-replacement-key-value" {
		t.Errorf("store value = %q, want the replacement", f.store.value)
	}
	if sess.State() != session.StateActive {
		t.Errorf("state = %v, want still Active", sess.State())
	}
	if sess.Len() != before {
		t.Errorf("history length changed from %d to %d", before, sess.Len())
	}
}

// TestHandleInputBareKeyPaste verifies a raw key pasted during setup is
// treated as a credential, not as chat.
func TestHandleInputBareKeyPaste(t *testing.T) {
	f := newFixture(t)
	f.store.value = ""
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "  sk-or-v1-pasted-key-0123456789  ")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, "saved successfully") {
		t.Errorf("reply = %q", got)
	}
	if f.store.value != "sk-or-v1-pasted-key-0123456789" {
		t.Errorf("store value = %q, want the pasted key trimmed", f.store.value)
	}
	if len(f.backend.requests) != 0 {
		t.Error("a key paste must not reach the completion backend")
	}
}

// TestHandleInputBarePasteRejected verifies a pasted key that fails
// validation leaves the session in setup with the store untouched.
func TestHandleInputBarePasteRejected(t *testing.T) {
	f := newFixture(t)
	f.store.value = ""
	f.validator.result = credential.Result{Status: credential.StatusUnauthorized}
	sess := session.New(session.Config{HasCredential: false})

	got, err := f.engine.HandleInput(context.Background(), sess, "sk-or-bad")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !strings.Contains(got, "Invalid API key") {
		t.Errorf("reply = %q, want a rejection", got)
	}
	if _, ok := f.store.Get(); ok {
		t.Error("rejected paste must leave the store empty")
	}
	if sess.State() != session.StateNeedsCredential {
		t.Errorf("state = %v, want still NeedsCredential", sess.State())
	}
}

func TestHandleInputChatWithoutCredential(t *testing.T) {
	f := newFixture(t)
	sess := session.New(session.Config{HasCredential: false})

	_, err := f.engine.HandleInput(context.Background(), sess, "Tell me about Shabbat")
	if !errors.Is(err, session.ErrNeedsCredential) {
		t.Errorf("HandleInput() = %v, want ErrNeedsCredential", err)
	}
	if sess.Len() != 0 {
		t.Errorf("refused chat grew history to %d", sess.Len())
	}
}

func TestHandleInputChatRoutesToTurn(t *testing.T) {
	f := newFixture(t, reply("An answer."))
	sess := activeSession(t)

	got, err := f.engine.HandleInput(context.Background(), sess, "Tell me about Shabbat")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if got != "An answer." {
		t.Errorf("HandleInput() = %q", got)
	}
}

func TestSelectPersonaFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	sess := session.New(session.Config{HasCredential: true})

	p, err := f.engine.SelectPersona(sess, "no-such-persona")
	if err != nil {
		t.Fatalf("SelectPersona() error = %v", err)
	}
	if p.Key != "generalist" {
		t.Errorf("persona = %q, want generalist fallback", p.Key)
	}
	if sess.State() != session.StateActive {
		t.Errorf("state = %v, want Active", sess.State())
	}
	if sess.Len() != 1 {
		t.Errorf("history length = %d, want exactly the system seed", sess.Len())
	}
}

func TestNewRequiresAllDependencies(t *testing.T) {
	base := Config{
		Backend:    &fakeBackend{},
		Dispatcher: &fakeDispatcher{},
		Catalog:    fakeCatalog{},
		Validator:  &fakeValidator{},
		Store:      &fakeStore{},
		Logger:     log.NewNop(),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "backend", mutate: func(c *Config) { c.Backend = nil }},
		{name: "dispatcher", mutate: func(c *Config) { c.Dispatcher = nil }},
		{name: "catalog", mutate: func(c *Config) { c.Catalog = nil }},
		{name: "validator", mutate: func(c *Config) { c.Validator = nil }},
		{name: "store", mutate: func(c *Config) { c.Store = nil }},
		{name: "logger", mutate: func(c *Config) { c.Logger = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() should reject a missing dependency")
			}
		})
	}
}
