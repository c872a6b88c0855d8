package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the observational event types published per session.
type EventKind string

const (
	// EventSessionUpdate carries a status change.
	EventSessionUpdate EventKind = "session_update"
	// EventTurnCompleted carries a successful contribution.
	EventTurnCompleted EventKind = "turn_completed"
	// EventTurnFailed carries a contribution whose retries were exhausted.
	EventTurnFailed EventKind = "turn_failed"
	// EventRoundCompleted fires once all agents in a round have been recorded.
	EventRoundCompleted EventKind = "round_completed"
	// EventConsensusReached fires when a verdict reports reached=true.
	EventConsensusReached EventKind = "consensus_reached"
)

// Event is the unit of the per-session publish/subscribe stream. Delivery is
// at-least-once; consumers deduplicate by ID. Events are observational and
// never mutate session state when replayed.
type Event struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	SessionID string         `json:"session_id"`
	Round     int            `json:"round,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Status    Status         `json:"status,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewID generates a unique identifier for events and correlation.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event for a session.
func NewEvent(kind EventKind, sessionID string) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionUpdateEvent records a status transition.
func NewSessionUpdateEvent(sessionID string, status Status, round int) Event {
	e := NewEvent(EventSessionUpdate, sessionID)
	e.Status = status
	e.Round = round
	return e
}

// NewTurnEvent records a completed or failed turn.
func NewTurnEvent(c Contribution) Event {
	kind := EventTurnCompleted
	if c.Outcome == OutcomeFailed {
		kind = EventTurnFailed
	}
	e := NewEvent(kind, c.SessionID)
	e.Round = c.Round
	e.AgentID = c.AgentID
	e.Payload = map[string]any{
		"contribution_id": c.ID,
		"agent_name":      c.AgentName,
		"position":        c.Position,
		"provider":        c.Provider,
		"outcome":         string(c.Outcome),
		"content":         c.Content,
	}
	return e
}

// NewRoundCompletedEvent records the end of a round (all turns recorded,
// successfully or not).
func NewRoundCompletedEvent(sessionID string, round, failed int) Event {
	e := NewEvent(EventRoundCompleted, sessionID)
	e.Round = round
	e.Payload = map[string]any{"failed_turns": failed}
	return e
}

// NewConsensusEvent records a reached verdict.
func NewConsensusEvent(sessionID string, v Verdict) Event {
	e := NewEvent(EventConsensusReached, sessionID)
	e.Round = v.Round
	e.Payload = map[string]any{
		"method": string(v.Method),
		"score":  v.Score,
	}
	return e
}

// Publisher is the outbound half of the per-session event channel. The session
// manager and scheduler publish through it; transport belongs to the consumer.
type Publisher interface {
	Publish(ev Event)
}

// NoOpPublisher discards all events. Useful for tests and embedded use.
type NoOpPublisher struct{}

// Publish implements Publisher.
func (NoOpPublisher) Publish(Event) {}
