// Package credential manages the OpenRouter API key: format checking, live
// validation against the completion backend, and durable storage.
//
// The key is the only process-wide mutable state in the engine. Store is the
// single injected owner of the active value; Validator is side-effect free
// and never touches the Store.
package credential

import "strings"

// Prefix is the required format prefix of an OpenRouter API key.
const Prefix = "sk-or-"

// Status classifies the outcome of a credential check.
type Status int

const (
	// StatusOK means the key passed the live probe.
	StatusOK Status = iota
	// StatusEmpty means no key was provided.
	StatusEmpty
	// StatusBadFormat means the key does not start with the required prefix.
	StatusBadFormat
	// StatusUnauthorized means the backend rejected the key (HTTP 401).
	StatusUnauthorized
	// StatusNoCredit means the key has no credits remaining (HTTP 402).
	StatusNoCredit
	// StatusTimeout means the probe did not complete within the bound.
	StatusTimeout
	// StatusBackendError means the backend answered with an unexpected status.
	StatusBackendError
	// StatusNetworkError means the probe failed at the transport level.
	StatusNetworkError
)

// String implements Stringer for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusBadFormat:
		return "bad_format"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusNoCredit:
		return "no_credit"
	case StatusTimeout:
		return "timeout"
	case StatusBackendError:
		return "backend_error"
	case StatusNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of Validator.Validate.
type Result struct {
	Status Status
	Detail string // backend/transport detail for BackendError and NetworkError
}

// Valid reports whether the candidate passed validation.
func (r Result) Valid() bool {
	return r.Status == StatusOK
}

// Message returns a user-facing description of the result.
func (r Result) Message() string {
	switch r.Status {
	case StatusOK:
		return "API key is valid"
	case StatusEmpty:
		return "No API key provided"
	case StatusBadFormat:
		return "Invalid key format (should start with '" + Prefix + "')"
	case StatusUnauthorized:
		return "Invalid API key (authentication failed)"
	case StatusNoCredit:
		return "API key has no credits remaining"
	case StatusTimeout:
		return "Connection timeout - check your internet connection"
	case StatusBackendError:
		return "API error: " + r.Detail
	case StatusNetworkError:
		return "Connection error: " + r.Detail
	default:
		return "Unknown validation result"
	}
}

// CheckFormat performs the fast local format check. It never makes a
// network call: empty input and input missing the required prefix are
// rejected immediately.
func CheckFormat(candidate string) Status {
	if candidate == "" {
		return StatusEmpty
	}
	if !strings.HasPrefix(candidate, Prefix) {
		return StatusBadFormat
	}
	return StatusOK
}

// Mask renders a key safe for display: first 15 and last 4 characters with
// the middle elided. Short keys are fully masked.
func Mask(key string) string {
	if key == "" {
		return "Not configured"
	}
	if len(key) <= 20 {
		return "sk-or-…"
	}
	return key[:15] + "..." + key[len(key)-4:]
}
