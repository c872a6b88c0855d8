package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/debatemesh/core"
)

// activeEntry is one TTL'd active-state value. A zero expiry never expires.
type activeEntry struct {
	value   any
	expires time.Time
}

func (e activeEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// InMemoryGateway is a process-local core.MemoryGateway. It offers:
//  1. Session scoped active key/value state with lazy TTL expiry
//  2. Append-only history with term-overlap Search scoring
//
// Concurrency: protected by RWMutex. Search is a linear scan scoring records
// by the number of query terms appearing as whole tokens in the content,
// recency breaking ties. Suitable for tests and demos; production retrieval belongs to a
// semantic index.
type InMemoryGateway struct {
	mu      sync.RWMutex
	active  map[string]map[string]activeEntry // sessionID -> key -> entry
	history map[string][]core.HistoryRecord   // sessionID -> append-only records
	now     func() time.Time
}

var _ core.MemoryGateway = (*InMemoryGateway)(nil)

// NewInMemoryGateway creates an empty in-memory gateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		active:  make(map[string]map[string]activeEntry),
		history: make(map[string][]core.HistoryRecord),
		now:     time.Now,
	}
}

// GetActive reads a session key. Expired entries read as absent and are
// dropped on the spot.
func (g *InMemoryGateway) GetActive(_ context.Context, sessionID, key string) (any, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entries, ok := g.active[sessionID]
	if !ok {
		return nil, false, nil
	}
	entry, ok := entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(g.now()) {
		delete(entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// SetActive writes a session key with an optional TTL (0 = no expiry).
func (g *InMemoryGateway) SetActive(_ context.Context, sessionID, key string, value any, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entries, ok := g.active[sessionID]
	if !ok {
		entries = make(map[string]activeEntry)
		g.active[sessionID] = entries
	}
	var expires time.Time
	if ttl > 0 {
		expires = g.now().Add(ttl)
	}
	entries[key] = activeEntry{value: value, expires: expires}
	return nil
}

// AppendHistory appends a record, assigning id and timestamp when missing.
func (g *InMemoryGateway) AppendHistory(_ context.Context, sessionID string, rec core.HistoryRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = g.now().UTC()
	}
	g.history[sessionID] = append(g.history[sessionID], rec)
	return nil
}

// QueryHistory scores records by term overlap with the query, best first,
// most recent first among equals. An empty query returns the newest records.
func (g *InMemoryGateway) QueryHistory(_ context.Context, sessionID, query string, topK int) ([]core.HistoryRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	records := g.history[sessionID]
	if topK <= 0 || len(records) == 0 {
		return []core.HistoryRecord{}, nil
	}

	terms := tokenize(query)
	type scored struct {
		rec   core.HistoryRecord
		score int
		idx   int
	}
	matches := make([]scored, 0, len(records))
	for i, rec := range records {
		score := 0
		tokens := tokenSet(rec.Content)
		for _, t := range terms {
			if tokens[t] {
				score++
			}
		}
		if len(terms) > 0 && score == 0 {
			continue
		}
		matches = append(matches, scored{rec: rec, score: score, idx: i})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].idx > matches[j].idx // recency tie-break
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	out := make([]core.HistoryRecord, len(matches))
	for i, m := range matches {
		out[i] = m.rec
	}
	return out, nil
}

// queryPunct is the punctuation stripped from token edges before matching.
const queryPunct = ".,;:!?\"'()[]"

// tokenize lowercases text and splits it into punctuation-trimmed tokens.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, queryPunct); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenSet builds the whole-token lookup used for scoring. Matching whole
// tokens keeps a term like "risk" from matching "risky".
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(text) {
		set[t] = true
	}
	return set
}

// HistorySince returns records with round >= sinceRound in append order.
func (g *InMemoryGateway) HistorySince(_ context.Context, sessionID string, sinceRound int) ([]core.HistoryRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	records := g.history[sessionID]
	out := make([]core.HistoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.Round >= sinceRound {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PurgeActive clears all active state for the session; history is untouched.
func (g *InMemoryGateway) PurgeActive(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, sessionID)
	return nil
}
