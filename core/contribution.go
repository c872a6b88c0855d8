package core

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	// OutcomeSuccess means the first reasoning call succeeded.
	OutcomeSuccess Outcome = "success"
	// OutcomeRetriedSuccess means the call succeeded after at least one retry.
	OutcomeRetriedSuccess Outcome = "retried_success"
	// OutcomeFailed means retries were exhausted; the round advanced anyway.
	OutcomeFailed Outcome = "failed"
)

// Contribution is one agent's turn within a round. Contributions are
// append-only: once written they are never mutated, corrections are modeled as
// new contributions.
type Contribution struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Round     int           `json:"round"`
	AgentID   string        `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	Position  int           `json:"position"` // ordinal within the round's turn order
	Content   string        `json:"content"`
	Provider  string        `json:"provider"`
	Latency   time.Duration `json:"latency"`
	Retries   int           `json:"retries,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewContribution constructs a contribution with a fresh id and UTC timestamp.
func NewContribution(sessionID string, round int, agent Agent, position int) Contribution {
	return Contribution{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Round:     round,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Position:  position,
		Provider:  agent.Provider,
		Timestamp: time.Now().UTC(),
	}
}
