package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/memory"
)

// stubGateway scripts reasoning outcomes per provider id.
type stubGateway struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, providerID string, req core.ReasoningRequest) (core.ReasoningResponse, error)
	calls []string
}

func (s *stubGateway) Generate(ctx context.Context, providerID string, req core.ReasoningRequest) (core.ReasoningResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, providerID)
	s.mu.Unlock()
	return s.fn(ctx, providerID, req)
}

func (s *stubGateway) Providers() []string { return []string{"p1", "p2", "p3"} }

func (s *stubGateway) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *capturePublisher) Publish(ev core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturePublisher) kinds() []core.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func testSession() *core.Session {
	sess := core.NewSession("should we ship the rollout this quarter", []core.Agent{
		{ID: "a1", Name: "Ada", Role: "analyst", Provider: "p1"},
		{ID: "a2", Name: "Elias", Role: "ethicist", Provider: "p2"},
		{ID: "a3", Name: "Sana", Role: "strategist", Provider: "p3"},
	})
	sess.RoundBudget = 5
	return sess
}

func agreeResponse(name string) core.ReasoningResponse {
	return core.ReasoningResponse{Text: fmt.Sprintf("STANCE: agree\n%s is on board.", name)}
}

func TestRunRound_RecordsInTurnOrderDespiteCompletionOrder(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	pub := &capturePublisher{}

	// first agent answers last, last agent answers first
	gw := &stubGateway{fn: func(ctx context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		switch providerID {
		case "p1":
			time.Sleep(60 * time.Millisecond)
		case "p2":
			time.Sleep(30 * time.Millisecond)
		}
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, pub)
	sess := testSession()

	report, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Round)
	require.Len(t, report.Contributions, 3)
	for i, c := range report.Contributions {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, 1, c.Round)
	}
	assert.Equal(t, "a1", report.Contributions[0].AgentID)
	assert.Equal(t, "a3", report.Contributions[2].AgentID)

	// history preserved the same order
	recs, _ := mem.HistorySince(context.Background(), sess.ID, 0)
	require.Len(t, recs, 3)
	assert.Equal(t, "a1", recs[0].AgentID)
	assert.Equal(t, "a2", recs[1].AgentID)
	assert.Equal(t, "a3", recs[2].AgentID)

	assert.Equal(t, []core.EventKind{
		core.EventTurnCompleted, core.EventTurnCompleted, core.EventTurnCompleted, core.EventRoundCompleted,
	}, pub.kinds())

	assert.Equal(t, 1, sess.CurrentRound())
	assert.Equal(t, 0, sess.Cursor(), "cursor resets at round end")
}

func TestRunRound_FailedTurnDoesNotBlockRound(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	pub := &capturePublisher{}

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		if providerID == "p2" {
			return core.ReasoningResponse{}, &core.ProviderError{Provider: providerID, Kind: core.FailureTimeout, Err: errors.New("deadline")}
		}
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, pub)
	sess := testSession()

	report, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Contributions, 3)
	assert.Equal(t, core.OutcomeSuccess, report.Contributions[0].Outcome)
	assert.Equal(t, core.OutcomeFailed, report.Contributions[1].Outcome)
	assert.Equal(t, core.OutcomeSuccess, report.Contributions[2].Outcome)

	kinds := pub.kinds()
	assert.Contains(t, kinds, core.EventTurnFailed)
	assert.Equal(t, core.EventRoundCompleted, kinds[len(kinds)-1])
}

func TestRunRound_ProviderUnavailableCounted(t *testing.T) {
	mem := memory.NewInMemoryGateway()

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		if providerID == "p3" {
			return core.ReasoningResponse{}, &core.ProviderError{Provider: providerID, Kind: core.FailureProviderUnavailable, Err: errors.New("down")}
		}
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, nil)
	sess := testSession()

	report, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProviderFailures["p3"])
	assert.Empty(t, report.ProviderFailures["p1"])
}

func TestRunRound_StanceParsedAndStored(t *testing.T) {
	mem := memory.NewInMemoryGateway()

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		if providerID == "p1" {
			return core.ReasoningResponse{Text: "STANCE: disagree\nToo risky."}, nil
		}
		// no marker, stance unchanged
		return core.ReasoningResponse{Text: "Let me think about this."}, nil
	}}

	s := New(mem, gw, nil)
	sess := testSession()

	_, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	a1, _ := sess.AgentByID("a1")
	assert.Equal(t, core.StanceDisagree, a1.Stance)

	a2, _ := sess.AgentByID("a2")
	assert.Equal(t, core.StanceNeutral, a2.Stance, "unparseable text leaves stance in place")

	v, ok, _ := mem.GetActive(context.Background(), sess.ID, StanceKeyPrefix+"a1")
	require.True(t, ok)
	assert.Equal(t, "disagree", v.(string))
}

func TestRunRound_PauseStopsDispatchAndResumeContinuesAtCursor(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	pub := &capturePublisher{}

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, pub, func(o *Options) { o.FanOut = 1 })
	sess := testSession()

	// pause after the first agent has been dispatched
	polls := 0
	report, err := s.RunRound(context.Background(), sess, func() bool {
		polls++
		return polls > 1
	})
	require.NoError(t, err)

	assert.True(t, report.Interrupted)
	require.Len(t, report.Contributions, 1)
	assert.Equal(t, "a1", report.Contributions[0].AgentID)
	assert.Equal(t, 1, sess.Cursor())
	assert.Equal(t, 1, gw.callCount(), "no call for agent 2 before resume")
	assert.NotContains(t, pub.kinds(), core.EventRoundCompleted)

	// resume: same round finishes starting at agent 2, agent 1 is not re-run
	report2, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	assert.False(t, report2.Interrupted)
	assert.Equal(t, 1, report2.Round, "resume continues the interrupted round")
	require.Len(t, report2.Contributions, 2)
	assert.Equal(t, "a2", report2.Contributions[0].AgentID)
	assert.Equal(t, 1, report2.Contributions[0].Position)
	assert.Equal(t, "a3", report2.Contributions[1].AgentID)
	assert.Equal(t, 3, gw.callCount())
	assert.Equal(t, 1, sess.CurrentRound())
	assert.Equal(t, 0, sess.Cursor())
}

func TestRunRound_ConsecutiveAppendFailuresAbort(t *testing.T) {
	flaky := memory.NewFlakyGateway(memory.NewInMemoryGateway())

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		return agreeResponse(providerID), nil
	}}

	s := New(flaky, gw, nil, func(o *Options) { o.StorageFailureLimit = 2 })
	sess := testSession()

	// every memory call fails: context builds degrade, appends abort
	flaky.FailNext(1000)

	_, err := s.RunRound(context.Background(), sess, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestRunRound_IsolatedStorageFailureDegradesContext(t *testing.T) {
	flaky := memory.NewFlakyGateway(memory.NewInMemoryGateway())

	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		return agreeResponse(providerID), nil
	}}

	s := New(flaky, gw, nil, func(o *Options) { o.FanOut = 1 })
	sess := testSession()

	// exactly one failure, hit by the first context build; the turn proceeds
	// with empty context and the round completes
	flaky.FailNext(1)

	report, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Contributions, 3)
}

func TestRunRound_RoundTimeoutMarksRemainingFailed(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	pub := &capturePublisher{}

	gw := &stubGateway{fn: func(ctx context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		<-ctx.Done()
		return core.ReasoningResponse{}, &core.ProviderError{Provider: providerID, Kind: core.FailureTimeout, Err: ctx.Err()}
	}}

	s := New(mem, gw, pub, func(o *Options) {
		o.FanOut = 1
		o.RoundTimeout = 50 * time.Millisecond
	})
	sess := testSession()

	report, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	assert.False(t, report.Interrupted)
	assert.Equal(t, 3, report.Failed, "stalled and undispatched agents are failed for the round")
	require.Len(t, report.Contributions, 3)
	assert.Equal(t, core.EventRoundCompleted, pub.kinds()[len(pub.kinds())-1])
	assert.Equal(t, 1, sess.CurrentRound())
}

func TestRunRound_EmptyRosterIsInvariantViolation(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, nil)
	sess := core.NewSession("scenario", []core.Agent{{ID: "a1", Name: "Ada", Provider: "p1"}})
	require.NoError(t, sess.Remove("a1"))

	_, err := s.RunRound(context.Background(), sess, nil)
	require.Error(t, err)

	var iv *core.InvariantViolationError
	assert.ErrorAs(t, err, &iv)
}

func TestRunRound_InterventionsReachPromptsOnce(t *testing.T) {
	mem := memory.NewInMemoryGateway()

	var mu sync.Mutex
	prompts := []string{}
	gw := &stubGateway{fn: func(_ context.Context, providerID string, req core.ReasoningRequest) (core.ReasoningResponse, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return agreeResponse(providerID), nil
	}}

	s := New(mem, gw, nil)
	sess := testSession()
	sess.AddIntervention("consider the regulatory angle")

	_, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	for _, p := range prompts {
		assert.Contains(t, p, "MODERATOR NOTE: consider the regulatory angle")
	}

	// consumed: the next round's prompts no longer carry it
	mu.Lock()
	prompts = prompts[:0]
	mu.Unlock()

	_, err = s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	for _, p := range prompts {
		assert.NotContains(t, p, "MODERATOR NOTE")
	}
}

func TestRunRound_HistoryWindowFeedsContext(t *testing.T) {
	mem := memory.NewInMemoryGateway()

	var mu sync.Mutex
	lastPrompts := map[string]string{}
	gw := &stubGateway{fn: func(_ context.Context, providerID string, req core.ReasoningRequest) (core.ReasoningResponse, error) {
		mu.Lock()
		lastPrompts[providerID] = req.Prompt
		mu.Unlock()
		return core.ReasoningResponse{Text: fmt.Sprintf("STANCE: agree\nround message from %s", providerID)}, nil
	}}

	s := New(mem, gw, nil, func(o *Options) { o.FanOut = 1 })
	sess := testSession()

	_, err := s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)
	_, err = s.RunRound(context.Background(), sess, nil)
	require.NoError(t, err)

	// round 2 prompts carry round 1 contributions by agent name
	mu.Lock()
	p2 := lastPrompts["p2"]
	mu.Unlock()
	assert.Contains(t, p2, "Ada: STANCE: agree")
	assert.Contains(t, p2, "ROUND 2")
}

func TestParseStance(t *testing.T) {
	cases := []struct {
		text string
		want core.Stance
		ok   bool
	}{
		{"STANCE: agree\nrest of text", core.StanceAgree, true},
		{"stance: Disagree\nmore", core.StanceDisagree, true},
		{"  \n STANCE: neutral.", core.StanceNeutral, true},
		{"STANCE: *agree*", core.StanceAgree, true},
		{"I think STANCE: agree", "", false},
		{"STANCE: undecided", "", false},
		{"no marker here", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseStance(tc.text)
		assert.Equal(t, tc.ok, ok, "text %q", tc.text)
		assert.Equal(t, tc.want, got, "text %q", tc.text)
	}
}

// roundMetricsRecorder captures LogRound upgrades from the scheduler.
type roundMetricsRecorder struct {
	logging.NoOpLogger
	mu     sync.Mutex
	round  int
	turns  int
	failed int
	calls  int
}

func (r *roundMetricsRecorder) LogRound(round, turns, failed int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.round, r.turns, r.failed = round, turns, failed
	r.calls++
}

func TestRunRound_RoundMetricsLoggerUpgrade(t *testing.T) {
	mem := memory.NewInMemoryGateway()
	gw := &stubGateway{fn: func(_ context.Context, providerID string, _ core.ReasoningRequest) (core.ReasoningResponse, error) {
		if providerID == "p3" {
			return core.ReasoningResponse{}, &core.ProviderError{Provider: providerID, Kind: core.FailureInvalidResponse}
		}
		return agreeResponse(providerID), nil
	}}

	rec := &roundMetricsRecorder{}
	s := New(mem, gw, nil, func(o *Options) { o.Logger = rec })

	_, err := s.RunRound(context.Background(), testSession(), nil)
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 1, rec.round)
	assert.Equal(t, 3, rec.turns)
	assert.Equal(t, 1, rec.failed)
}

func TestBuildInstructions_CarriesRoleAndMarkerConvention(t *testing.T) {
	agent := core.Agent{
		Name:          "Ada",
		Role:          "analyst",
		Persona:       "rigorous, numbers first",
		Expertise:     []string{"statistics", "forecasting"},
		InitialStance: core.StanceNeutral,
	}

	instr := BuildInstructions(agent, "scenario")
	assert.Contains(t, instr, "You are Ada, a analyst")
	assert.Contains(t, instr, "rigorous, numbers first")
	assert.Contains(t, instr, "statistics, forecasting")
	assert.Contains(t, instr, `"STANCE: <position>"`)
	assert.True(t, strings.Contains(instr, "agree, disagree or neutral"))
}

func TestBuildInstructions_ExpandsPersonaTemplates(t *testing.T) {
	agent := core.Agent{
		Name:    "Ada",
		Role:    "analyst",
		Persona: "You scrutinize every claim about {{.Scenario}}.",
	}

	instr := BuildInstructions(agent, "the pilot rollout")
	assert.Contains(t, instr, "You scrutinize every claim about the pilot rollout.")

	agent.Persona = "broken {{."
	instr = BuildInstructions(agent, "the pilot rollout")
	assert.Contains(t, instr, "broken {{.")
}
