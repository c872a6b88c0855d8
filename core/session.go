package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the session state machine.
type Status string

const (
	// StatusCreated is the initial state after CreateSession.
	StatusCreated Status = "created"
	// StatusDebating means the round loop is running.
	StatusDebating Status = "debating"
	// StatusPaused means no new round is scheduled until resume.
	StatusPaused Status = "paused"
	// StatusCompleted is terminal: consensus reached, budget exhausted or
	// user-forced finalize. Reopening is an explicit exception path.
	StatusCompleted Status = "completed"
	// StatusErrored is terminal: repeated storage failures or an internal
	// invariant violation.
	StatusErrored Status = "errored"
)

// transitions is the allowed state machine. Reopening a completed session is
// handled by Session.Reopen, not by this table.
var transitions = map[Status][]Status{
	StatusCreated:  {StatusDebating},
	StatusDebating: {StatusPaused, StatusCompleted, StatusErrored},
	StatusPaused:   {StatusDebating, StatusCompleted},
}

// Session is one complete debate instance over a scenario with a fixed agent
// roster. It is owned by the session manager and safe for concurrent access;
// all mutation goes through methods so invariants (monotonic round number,
// legal status transitions) hold by construction.
type Session struct {
	ID                  string    `json:"id"`
	Scenario            string    `json:"scenario"`
	Agents              []Agent   `json:"agents"`
	Status              Status    `json:"status"`
	Round               int       `json:"round"` // 0 before the first round
	RoundBudget         int       `json:"round_budget"`
	ConsensusReached    bool      `json:"consensus_reached"`
	ConsensusOverridden bool      `json:"consensus_overridden,omitempty"`
	TurnCursor          int       `json:"turn_cursor"` // next agent index within an in-flight round
	Interventions       []string  `json:"interventions,omitempty"`
	Verdicts            []Verdict `json:"verdicts,omitempty"`
	Created             time.Time `json:"created"`
	Updated             time.Time `json:"updated"`

	mu sync.RWMutex
}

// NewSession allocates a session in the created state. Agent stances start at
// their upstream-supplied initial stance (neutral if unset).
func NewSession(scenario string, agents []Agent) *Session {
	now := time.Now().UTC()
	roster := make([]Agent, len(agents))
	copy(roster, agents)
	for i := range roster {
		if roster[i].ID == "" {
			roster[i].ID = uuid.NewString()
		}
		if roster[i].InitialStance == "" {
			roster[i].InitialStance = StanceNeutral
		}
		if roster[i].Stance == "" {
			roster[i].Stance = roster[i].InitialStance
		}
	}
	return &Session{
		ID:       uuid.NewString(),
		Scenario: scenario,
		Agents:   roster,
		Status:   StatusCreated,
		Created:  now,
		Updated:  now,
	}
}

// GetStatus returns the current status.
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// CurrentRound returns the current round number.
func (s *Session) CurrentRound() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Round
}

// Transition moves the session to a new status, validating against the state
// machine. Illegal transitions are rejected, never silently applied.
func (s *Session) Transition(to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.Updated = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", s.Status, to)
}

// Reopen moves a completed session back to debating with a fresh round budget,
// marking that any recorded consensus was explicitly overridden by the user.
func (s *Session) Reopen(budget int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusCompleted {
		return fmt.Errorf("cannot reopen session in status %s", s.Status)
	}
	if budget <= 0 {
		return &ValidationError{Field: "round_budget", Reason: "must be positive"}
	}
	s.Status = StatusDebating
	s.RoundBudget = s.Round + budget
	if s.ConsensusReached {
		s.ConsensusOverridden = true
		s.ConsensusReached = false
	}
	s.Updated = time.Now().UTC()
	return nil
}

// BeginRound advances to the next round, or returns the in-flight round when
// resuming mid-round (non-zero turn cursor). The returned round number never
// decreases across calls.
func (s *Session) BeginRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TurnCursor == 0 {
		s.Round++
	}
	s.Updated = time.Now().UTC()
	return s.Round
}

// Cursor returns the index of the next agent to dispatch within the current
// round.
func (s *Session) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TurnCursor
}

// SetCursor records the next agent index for an interrupted round so resume
// continues where pause stopped.
func (s *Session) SetCursor(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCursor = i
	s.Updated = time.Now().UTC()
}

// FinishRound resets the turn cursor after a fully recorded round.
func (s *Session) FinishRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCursor = 0
	s.Updated = time.Now().UTC()
}

// ActiveAgents returns a copy of the roster excluding removed agents, in the
// fixed turn order established at creation.
func (s *Session) ActiveAgents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		if !a.Removed {
			active = append(active, a)
		}
	}
	return active
}

// AgentByID looks up an agent (removed or not) by id.
func (s *Session) AgentByID(id string) (Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// SetStance records an agent's latest self-reported stance.
func (s *Session) SetStance(agentID string, stance Stance) {
	if !stance.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Agents {
		if s.Agents[i].ID == agentID {
			s.Agents[i].Stance = stance
			s.Updated = time.Now().UTC()
			return
		}
	}
}

// SetProviders applies a provider assignment (agent id -> provider id) to the
// roster. Agents absent from the mapping keep their current provider.
func (s *Session) SetProviders(assignment map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Agents {
		if p, ok := assignment[s.Agents[i].ID]; ok {
			s.Agents[i].Provider = p
		}
	}
	s.Updated = time.Now().UTC()
}

// Remove soft-deletes an agent from the active roster. History keeps its
// attribution; the agent takes no further turns.
func (s *Session) Remove(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Agents {
		if s.Agents[i].ID == agentID {
			if s.Agents[i].Removed {
				return ErrAgentNotFound
			}
			s.Agents[i].Removed = true
			s.Updated = time.Now().UTC()
			return nil
		}
	}
	return ErrAgentNotFound
}

// AddIntervention buffers user-injected context for consumption by the next
// round's prompts.
func (s *Session) AddIntervention(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Interventions = append(s.Interventions, text)
	s.Updated = time.Now().UTC()
}

// PendingInterventions returns buffered intervention texts without consuming
// them; the scheduler drains them via ClearInterventions once a round has
// incorporated them.
func (s *Session) PendingInterventions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.Interventions))
	copy(out, s.Interventions)
	return out
}

// ClearInterventions drops the intervention buffer after a round consumed it.
func (s *Session) ClearInterventions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Interventions = nil
}

// RecordVerdict appends a verdict to the audit trail and, when reached, latches
// the consensus flag. Historical verdicts are never overwritten.
func (s *Session) RecordVerdict(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Verdicts = append(s.Verdicts, v)
	if v.Reached {
		s.ConsensusReached = true
	}
	s.Updated = time.Now().UTC()
}

// LatestVerdict returns the most recent verdict, if any.
func (s *Session) LatestVerdict() (Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Verdicts) == 0 {
		return Verdict{}, false
	}
	return s.Verdicts[len(s.Verdicts)-1], true
}

// Snapshot returns a deep copy safe for handing to callers; the copy shares no
// mutable state with the live session.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &Session{
		ID:                  s.ID,
		Scenario:            s.Scenario,
		Agents:              make([]Agent, len(s.Agents)),
		Status:              s.Status,
		Round:               s.Round,
		RoundBudget:         s.RoundBudget,
		ConsensusReached:    s.ConsensusReached,
		ConsensusOverridden: s.ConsensusOverridden,
		TurnCursor:          s.TurnCursor,
		Interventions:       make([]string, len(s.Interventions)),
		Verdicts:            make([]Verdict, len(s.Verdicts)),
		Created:             s.Created,
		Updated:             s.Updated,
	}
	copy(cp.Agents, s.Agents)
	copy(cp.Interventions, s.Interventions)
	copy(cp.Verdicts, s.Verdicts)
	return cp
}
