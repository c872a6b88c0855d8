package core

import "testing"

func testRoster() []Agent {
	return []Agent{
		{ID: "a1", Name: "Ada", Role: "analyst"},
		{ID: "a2", Name: "Elias", Role: "ethicist", InitialStance: StanceAgree},
	}
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession("pilot rollout", testRoster())

	if s.ID == "" {
		t.Fatalf("expected generated session id")
	}
	if s.Status != StatusCreated {
		t.Fatalf("expected status created, got %s", s.Status)
	}
	if s.Round != 0 {
		t.Fatalf("expected round 0 before first round, got %d", s.Round)
	}
	if s.Agents[0].Stance != StanceNeutral || s.Agents[0].InitialStance != StanceNeutral {
		t.Fatalf("expected unset stance to default neutral, got %s/%s", s.Agents[0].Stance, s.Agents[0].InitialStance)
	}
	if s.Agents[1].Stance != StanceAgree {
		t.Fatalf("expected initial stance carried to stance, got %s", s.Agents[1].Stance)
	}
}

func TestSession_TransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusDebating, true},
		{StatusCreated, StatusPaused, false},
		{StatusCreated, StatusCompleted, false},
		{StatusDebating, StatusPaused, true},
		{StatusDebating, StatusCompleted, true},
		{StatusDebating, StatusErrored, true},
		{StatusPaused, StatusDebating, true},
		{StatusPaused, StatusCompleted, true},
		{StatusPaused, StatusErrored, false},
		{StatusCompleted, StatusDebating, false},
		{StatusErrored, StatusDebating, false},
	}
	for _, tt := range tests {
		s := NewSession("x", testRoster())
		s.Status = tt.from
		err := s.Transition(tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s -> %s: expected rejection", tt.from, tt.to)
		}
	}
}

func TestSession_Reopen(t *testing.T) {
	s := NewSession("x", testRoster())
	s.Status = StatusDebating
	if err := s.Reopen(3); err == nil {
		t.Fatalf("expected reopen rejected while debating")
	}

	s.Status = StatusCompleted
	s.Round = 4
	s.ConsensusReached = true
	if err := s.Reopen(0); err == nil {
		t.Fatalf("expected reopen rejected for non-positive budget")
	}
	if err := s.Reopen(3); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s.GetStatus() != StatusDebating {
		t.Fatalf("expected debating after reopen, got %s", s.GetStatus())
	}
	if s.RoundBudget != 7 {
		t.Fatalf("expected budget extended to 7, got %d", s.RoundBudget)
	}
	if s.ConsensusReached || !s.ConsensusOverridden {
		t.Fatalf("expected consensus flag cleared and override recorded")
	}
}

func TestSession_BeginRoundCursorInteraction(t *testing.T) {
	s := NewSession("x", testRoster())

	if r := s.BeginRound(); r != 1 {
		t.Fatalf("expected round 1, got %d", r)
	}
	// pause mid-round: cursor persisted, BeginRound must not advance
	s.SetCursor(1)
	if r := s.BeginRound(); r != 1 {
		t.Fatalf("expected resumed round to stay at 1, got %d", r)
	}
	s.FinishRound()
	if s.Cursor() != 0 {
		t.Fatalf("expected cursor reset, got %d", s.Cursor())
	}
	if r := s.BeginRound(); r != 2 {
		t.Fatalf("expected round 2 after finished round, got %d", r)
	}
}

func TestSession_RemoveAgent(t *testing.T) {
	s := NewSession("x", testRoster())

	if err := s.Remove("a2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("a2"); err != ErrAgentNotFound {
		t.Fatalf("expected ErrAgentNotFound on double remove, got %v", err)
	}
	if err := s.Remove("nope"); err != ErrAgentNotFound {
		t.Fatalf("expected ErrAgentNotFound for unknown agent, got %v", err)
	}

	active := s.ActiveAgents()
	if len(active) != 1 || active[0].ID != "a1" {
		t.Fatalf("expected only a1 active, got %+v", active)
	}
	// removed agents stay addressable for history attribution
	if _, ok := s.AgentByID("a2"); !ok {
		t.Fatalf("expected removed agent still resolvable by id")
	}
}

func TestSession_SetStanceIgnoresInvalid(t *testing.T) {
	s := NewSession("x", testRoster())
	s.SetStance("a1", Stance("maybe"))
	if a, _ := s.AgentByID("a1"); a.Stance != StanceNeutral {
		t.Fatalf("expected invalid stance ignored, got %s", a.Stance)
	}
	s.SetStance("a1", StanceDisagree)
	if a, _ := s.AgentByID("a1"); a.Stance != StanceDisagree {
		t.Fatalf("expected stance updated, got %s", a.Stance)
	}
}

func TestSession_VerdictLatching(t *testing.T) {
	s := NewSession("x", testRoster())

	if _, ok := s.LatestVerdict(); ok {
		t.Fatalf("expected no verdict on fresh session")
	}
	s.RecordVerdict(Verdict{Round: 1, Method: MethodSimpleMajority, Reached: false, Score: 0.5})
	s.RecordVerdict(Verdict{Round: 2, Method: MethodSimpleMajority, Reached: true, Score: 1})
	if !s.ConsensusReached {
		t.Fatalf("expected consensus latched by reached verdict")
	}
	v, ok := s.LatestVerdict()
	if !ok || v.Round != 2 {
		t.Fatalf("expected latest verdict from round 2, got %+v", v)
	}
	if len(s.Verdicts) != 2 {
		t.Fatalf("expected full verdict trail, got %d", len(s.Verdicts))
	}
}

func TestSession_SnapshotIsDeepCopy(t *testing.T) {
	s := NewSession("x", testRoster())
	s.AddIntervention("note")

	snap := s.Snapshot()
	snap.Agents[0].Name = "changed"
	snap.Interventions[0] = "changed"

	if a, _ := s.AgentByID("a1"); a.Name != "Ada" {
		t.Fatalf("snapshot mutation leaked into roster")
	}
	if s.PendingInterventions()[0] != "note" {
		t.Fatalf("snapshot mutation leaked into interventions")
	}
}

func TestSession_InterventionBuffer(t *testing.T) {
	s := NewSession("x", testRoster())
	s.AddIntervention("consider latency")
	s.AddIntervention("consider cost")

	pending := s.PendingInterventions()
	if len(pending) != 2 || pending[0] != "consider latency" {
		t.Fatalf("unexpected pending interventions %v", pending)
	}
	s.ClearInterventions()
	if len(s.PendingInterventions()) != 0 {
		t.Fatalf("expected buffer drained")
	}
}
