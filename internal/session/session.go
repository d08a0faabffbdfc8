// Package session implements the per-conversation state machine and
// ordered message history.
//
// A session moves through three states:
//
//	NeedsCredential -> AwaitingPersona -> Active
//
// NeedsCredential accepts only credential input. AwaitingPersona accepts a
// persona selection, which seeds the history with exactly one system
// message; ordinary chat is rejected without touching state or history.
// Active accepts chat turns. Credential replacement is legal in any state
// and resets nothing else. There is no terminal state; a session lives as
// long as its interaction context and is discarded on teardown.
//
// Each session is single-writer: one turn in flight at a time, enforced by
// BeginTurn/EndTurn. Sessions share no state with each other.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sefaria-labs/explorer/internal/log"
)

// State is the lifecycle position of a session.
type State int

const (
	// StateNeedsCredential: no valid credential is configured yet.
	StateNeedsCredential State = iota
	// StateAwaitingPersona: credential present, persona not yet chosen.
	StateAwaitingPersona
	// StateActive: conversation in progress.
	StateActive
)

// String implements Stringer for logging.
func (s State) String() string {
	switch s {
	case StateNeedsCredential:
		return "needs_credential"
	case StateAwaitingPersona:
		return "awaiting_persona"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// DefaultMaxHistory caps history length when Config leaves it unset.
const DefaultMaxHistory = 200

// Config contains parameters for a new Session.
type Config struct {
	// HasCredential selects the initial state: true starts at
	// AwaitingPersona, false at NeedsCredential.
	HasCredential bool

	// MaxHistory caps the message count; oldest non-system messages are
	// evicted beyond it. Zero uses DefaultMaxHistory.
	MaxHistory int

	Logger log.Logger
}

// Session holds one user interaction context: current state, selected
// persona and the ordered conversation history.
//
// Individual accessors are safe for concurrent use; multi-step turns must
// be bracketed with BeginTurn/EndTurn so only one is in flight at a time.
type Session struct {
	id         uuid.UUID
	maxHistory int
	logger     log.Logger

	// turnMu serializes whole turns. Held across the orchestration loop's
	// backend calls, so a second message for the same session blocks until
	// the first turn completes.
	turnMu sync.Mutex

	mu         sync.Mutex
	state      State
	personaKey string
	history    []Message
}

// New creates a session in its initial state.
func New(cfg Config) *Session {
	state := StateNeedsCredential
	if cfg.HasCredential {
		state = StateAwaitingPersona
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{
		id:         uuid.New(),
		maxHistory: maxHistory,
		logger:     logger,
		state:      state,
	}
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PersonaKey returns the selected persona key, empty before selection.
func (s *Session) PersonaKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaKey
}

// BeginTurn blocks until this session has no turn in flight, then claims
// the turn slot. Every BeginTurn must be paired with EndTurn.
func (s *Session) BeginTurn() { s.turnMu.Lock() }

// EndTurn releases the turn slot.
func (s *Session) EndTurn() { s.turnMu.Unlock() }

// CredentialConfigured records that a valid credential is now available.
// In NeedsCredential it advances to AwaitingPersona; in any other state it
// is a no-op; a mid-conversation key replacement resets nothing else.
func (s *Session) CredentialConfigured() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNeedsCredential {
		s.state = StateAwaitingPersona
		s.logger.Debug("session state change",
			"session_id", s.id, "state", StateAwaitingPersona)
	}
}

// SelectPersona seeds the conversation with exactly one system message
// built from the persona's prompt and activates the session.
//
// Legal only in AwaitingPersona: NeedsCredential returns
// ErrNeedsCredential, Active returns ErrNotAwaitingPersona. On error the
// state and history are unchanged.
func (s *Session) SelectPersona(key, systemPrompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNeedsCredential:
		return ErrNeedsCredential
	case StateActive:
		return ErrNotAwaitingPersona
	}

	s.personaKey = key
	s.history = []Message{SystemMessage(systemPrompt)}
	s.state = StateActive
	s.logger.Debug("persona selected",
		"session_id", s.id, "persona", key)
	return nil
}

// EnsureActive reports whether the session accepts ordinary chat messages,
// classifying the refusal by state.
func (s *Session) EnsureActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNeedsCredential:
		return ErrNeedsCredential
	case StateAwaitingPersona:
		return ErrNoPersona
	default:
		return nil
	}
}

// Append adds messages to the history in order.
func (s *Session) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

// History returns a copy of the ordered conversation history.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Prune evicts the oldest non-system messages until the history fits the
// cap, returning how many were dropped. System messages are never evicted.
//
// An assistant message carrying tool calls and the tool results answering
// them are evicted together: an eviction boundary between them would leave
// tool messages whose tool_call_id references nothing, a history the
// completion backend rejects. Whole-unit eviction may drop slightly below
// the cap.
//
// Growth is otherwise unbounded, so the orchestration loop calls this
// before every completion request.
func (s *Session) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) <= s.maxHistory {
		return 0
	}

	drop := make([]bool, len(s.history))
	remaining := len(s.history)
	for start := 0; start < len(s.history) && remaining > s.maxHistory; {
		end := evictionUnitEnd(s.history, start)
		if s.history[start].Role != RoleSystem {
			for i := start; i < end; i++ {
				drop[i] = true
			}
			remaining -= end - start
		}
		start = end
	}

	kept := make([]Message, 0, remaining)
	for i, msg := range s.history {
		if !drop[i] {
			kept = append(kept, msg)
		}
	}
	dropped := len(s.history) - len(kept)
	s.history = kept

	if dropped > 0 {
		s.logger.Info("evicted history messages",
			"session_id", s.id, "dropped", dropped, "cap", s.maxHistory)
	}
	return dropped
}

// evictionUnitEnd returns the half-open end of the eviction unit starting
// at start: an assistant message with tool calls spans its trailing tool
// results, every other message stands alone.
func evictionUnitEnd(history []Message, start int) int {
	end := start + 1
	if history[start].Role == RoleAssistant && len(history[start].ToolCalls) > 0 {
		for end < len(history) && history[end].Role == RoleTool {
			end++
		}
	}
	return end
}
