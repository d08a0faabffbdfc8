package session

import "errors"

// Sentinel errors for illegal state-machine inputs.
var (
	// ErrNeedsCredential indicates the session cannot accept chat or
	// persona input until a credential is configured.
	ErrNeedsCredential = errors.New("session needs a credential")

	// ErrNoPersona indicates a chat message arrived before a persona was
	// selected.
	ErrNoPersona = errors.New("no persona selected")

	// ErrNotAwaitingPersona indicates a persona selection arrived in a
	// state that does not accept one.
	ErrNotAwaitingPersona = errors.New("session is not awaiting persona selection")
)
