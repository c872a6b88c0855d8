package core

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by gateways and the session manager. Callers match
// them with errors.Is.
var (
	// ErrStorageUnavailable indicates the backing store for the MemoryGateway
	// cannot be reached. Isolated occurrences degrade a single turn's context;
	// repeated occurrences abort the round.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInsufficientParticipants is returned by consensus evaluation when
	// fewer than the configured minimum of agents remain active. The round
	// proceeds without a verdict.
	ErrInsufficientParticipants = errors.New("insufficient participants")

	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAgentNotFound indicates an unknown agent id within a session.
	ErrAgentNotFound = errors.New("agent not found")
)

// ValidationError rejects bad session parameters synchronously; the session is
// never created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FailureKind classifies a reasoning provider failure.
type FailureKind string

const (
	// FailureTimeout means the call exceeded its deadline. Retryable.
	FailureTimeout FailureKind = "timeout"
	// FailureRateLimited means the provider throttled the call. Retryable.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureProviderUnavailable means the provider cannot serve requests at
	// all (unknown id, auth failure, outage). Not retryable within a call;
	// repeated occurrences trigger selector re-assignment.
	FailureProviderUnavailable FailureKind = "provider_unavailable"
	// FailureInvalidResponse means the provider answered with unusable
	// content. Never retried: repetition is unlikely to fix it.
	FailureInvalidResponse FailureKind = "invalid_response"
)

// ProviderError is the typed failure returned by the ReasoningGateway.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the gateway may retry the call.
func (e *ProviderError) Retryable() bool {
	return e.Kind == FailureTimeout || e.Kind == FailureRateLimited
}

// InvariantViolationError indicates a scheduling bug (e.g. an out-of-sequence
// round number). It is always fatal and never silently corrected.
type InvariantViolationError struct {
	SessionID string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation in session %s: %s", e.SessionID, e.Detail)
}
