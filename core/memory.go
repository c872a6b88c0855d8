package core

import (
	"context"
	"time"
)

// RecordKind categorizes an entry in the durable session history.
type RecordKind string

const (
	// RecordContribution is a persisted turn contribution.
	RecordContribution RecordKind = "contribution"
	// RecordVerdict is a persisted consensus verdict.
	RecordVerdict RecordKind = "verdict"
	// RecordIntervention is user-injected context.
	RecordIntervention RecordKind = "intervention"
)

// HistoryRecord is one append-only entry of a session's durable history.
type HistoryRecord struct {
	ID        string         `json:"id"`
	Kind      RecordKind     `json:"kind"`
	Round     int            `json:"round"`
	AgentID   string         `json:"agent_id,omitempty"`
	AgentName string         `json:"agent_name,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// MemoryGateway is the uniform interface over the two memory tiers: a
// low-latency session-scoped key/value store for active state (purged on
// session reset so no state bleeds across unrelated debates) and a durable,
// append-only, searchable session history.
//
// Store unavailability surfaces as ErrStorageUnavailable; the scheduler
// degrades a single turn's context on isolated failures and aborts the round
// past a consecutive-failure threshold.
type MemoryGateway interface {
	// GetActive reads a session-scoped active-state key. The second return
	// reports presence: absent keys are not errors.
	GetActive(ctx context.Context, sessionID, key string) (any, bool, error)

	// SetActive writes a session-scoped key with an optional TTL (0 = no
	// expiry).
	SetActive(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error

	// AppendHistory appends a record to the session's durable history.
	AppendHistory(ctx context.Context, sessionID string, rec HistoryRecord) error

	// QueryHistory returns up to topK records most relevant to the query,
	// best match first. An empty query returns the most recent records.
	// QueryHistory is read-only.
	QueryHistory(ctx context.Context, sessionID, query string, topK int) ([]HistoryRecord, error)

	// HistorySince returns, in append order, all records whose round is
	// >= sinceRound (0 returns everything).
	HistorySince(ctx context.Context, sessionID string, sinceRound int) ([]HistoryRecord, error)

	// PurgeActive clears all active state for the session. History is
	// untouched.
	PurgeActive(ctx context.Context, sessionID string) error
}
