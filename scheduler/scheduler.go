// Package scheduler drives the round-robin debate loop: one full round per
// invocation, agents visited in the session's fixed turn order. Reasoning
// calls for different agents may be dispatched concurrently up to a fan-out
// limit, but contributions are always recorded in turn order, and round N is
// fully persisted before round N+1 can begin.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// Options configures a Scheduler.
type Options struct {
	// HistoryWindow is how many trailing rounds of contributions feed each
	// agent's conversation context. Default 2.
	HistoryWindow int
	// FanOut bounds concurrent reasoning dispatch within a round. Default 4.
	FanOut int
	// StorageFailureLimit is the number of consecutive history-append
	// failures after which the round aborts with ErrStorageUnavailable.
	// Default 3.
	StorageFailureLimit int
	// TurnTimeout is the per-agent call budget used to derive the round
	// timeout; it should match the reasoning gateway's call timeout budget
	// including retries. Default 30s.
	TurnTimeout time.Duration
	// RoundTimeout caps a whole round. Zero derives TurnTimeout * agents
	// plus scheduling slack.
	RoundTimeout time.Duration
	// Constraints are passed through to every reasoning call.
	Constraints core.Constraints
	// Logger receives per-turn diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// RoundReport summarizes one RunRound invocation for the session manager.
type RoundReport struct {
	Round         int
	Contributions []core.Contribution
	Failed        int
	// ProviderFailures counts provider_unavailable outcomes per provider id,
	// feeding the selector's re-assignment trigger.
	ProviderFailures map[string]int
	// Interrupted means a pause stopped dispatch before the round finished;
	// the turn cursor marks where resume continues.
	Interrupted bool
}

// Scheduler executes debate rounds against injected gateways. It holds no
// session-wide lock across gateway calls; only the recording phase is
// serialized per round.
type Scheduler struct {
	mem  core.MemoryGateway
	gw   core.ReasoningGateway
	pub  core.Publisher
	opts Options
}

// New creates a Scheduler over the given gateways and event publisher.
func New(mem core.MemoryGateway, gw core.ReasoningGateway, pub core.Publisher, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		HistoryWindow:       2,
		FanOut:              4,
		StorageFailureLimit: 3,
		TurnTimeout:         30 * time.Second,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if pub == nil {
		pub = core.NoOpPublisher{}
	}
	return &Scheduler{mem: mem, gw: gw, pub: pub, opts: opts}
}

// turnResult carries one agent's reasoning outcome from its dispatch
// goroutine to the ordered recording phase.
type turnResult struct {
	resp core.ReasoningResponse
	err  error
	done chan struct{}
}

// RunRound executes exactly one round (or the remainder of an interrupted
// one). interrupted is polled before each agent dispatch; when it reports
// true, in-flight calls finish naturally, completed turns are recorded, and
// the cursor is left at the first undispatched agent.
func (s *Scheduler) RunRound(ctx context.Context, sess *core.Session, interrupted func() bool) (RoundReport, error) {
	if interrupted == nil {
		interrupted = func() bool { return false }
	}
	round := sess.BeginRound()
	order := sess.ActiveAgents()
	report := RoundReport{Round: round, ProviderFailures: make(map[string]int)}
	if len(order) == 0 {
		return report, &core.InvariantViolationError{SessionID: sess.ID, Detail: "round started with empty roster"}
	}

	cursor := sess.Cursor()
	if cursor > len(order) {
		// Roster shrank while paused; never replay completed turns.
		cursor = len(order)
	}

	roundTimeout := s.opts.RoundTimeout
	if roundTimeout <= 0 {
		roundTimeout = s.opts.TurnTimeout*time.Duration(len(order)-cursor) + 5*time.Second
	}
	roundCtx, cancel := context.WithTimeout(ctx, roundTimeout)
	defer cancel()

	interventions := sess.PendingInterventions()
	logger := s.opts.Logger

	// Dispatch phase: calls run concurrently up to FanOut; the pause flag is
	// checked before every dispatch, never mid-call.
	results := make([]*turnResult, len(order))
	sem := make(chan struct{}, s.opts.FanOut)
	var wg sync.WaitGroup
	dispatched := cursor
	timedOut := false
	for i := cursor; i < len(order); i++ {
		if interrupted() || ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		select {
		case sem <- struct{}{}:
		case <-roundCtx.Done():
			timedOut = true
		}
		if timedOut {
			break
		}
		res := &turnResult{done: make(chan struct{})}
		results[i] = res
		wg.Add(1)
		go func(agent core.Agent) {
			defer wg.Done()
			defer func() { <-sem }()
			defer close(res.done)
			req := s.buildRequest(roundCtx, sess, agent, round, interventions)
			res.resp, res.err = s.gw.Generate(roundCtx, agent.Provider, req)
		}(order[i])
		dispatched = i + 1
	}

	// Recording phase: strictly in turn order, regardless of completion
	// order. Each contribution is durably appended and its event published
	// before the next position is recorded.
	start := time.Now()
	storageFailures := 0
	for i := cursor; i < dispatched; i++ {
		res := results[i]
		<-res.done
		contrib := s.makeContribution(sess, round, order[i], i, res, &report)
		if err := s.record(ctx, sess, contrib, res.err); err != nil {
			storageFailures++
			logger.Warn("contribution append failed", "session_id", sess.ID, "round", round, "agent_id", contrib.AgentID, "error", err.Error())
			if storageFailures >= s.opts.StorageFailureLimit {
				wg.Wait()
				return report, fmt.Errorf("round %d aborted after %d consecutive append failures: %w",
					round, storageFailures, core.ErrStorageUnavailable)
			}
		} else {
			storageFailures = 0
		}
		report.Contributions = append(report.Contributions, contrib)
		s.pub.Publish(core.NewTurnEvent(contrib))
		sess.SetCursor(i + 1)
	}
	wg.Wait()

	if report.Interrupted {
		return report, nil
	}

	// Round-level timeout: finalize with what completed, mark the rest
	// failed for this round.
	for i := dispatched; i < len(order); i++ {
		contrib := core.NewContribution(sess.ID, round, order[i], i)
		contrib.Outcome = core.OutcomeFailed
		report.Failed++
		if err := s.record(ctx, sess, contrib, context.DeadlineExceeded); err != nil {
			logger.Warn("failed-turn append failed", "session_id", sess.ID, "round", round, "error", err.Error())
		}
		report.Contributions = append(report.Contributions, contrib)
		s.pub.Publish(core.NewTurnEvent(contrib))
	}

	sess.FinishRound()
	sess.ClearInterventions()
	if rl, ok := logger.(logging.RoundMetricsLogger); ok {
		rl.LogRound(round, len(report.Contributions), report.Failed, time.Since(start))
	} else {
		logger.Info("round completed", "session_id", sess.ID, "round", round,
			"turns", len(report.Contributions), "failed", report.Failed, "duration", time.Since(start))
	}
	s.pub.Publish(core.NewRoundCompletedEvent(sess.ID, round, report.Failed))
	return report, nil
}

// makeContribution converts a turn result into an append-ready contribution
// and updates stance and failure accounting.
func (s *Scheduler) makeContribution(sess *core.Session, round int, agent core.Agent, position int, res *turnResult, report *RoundReport) core.Contribution {
	contrib := core.NewContribution(sess.ID, round, agent, position)
	if res.err != nil {
		contrib.Outcome = core.OutcomeFailed
		report.Failed++
		var perr *core.ProviderError
		if errors.As(res.err, &perr) && perr.Kind == core.FailureProviderUnavailable {
			report.ProviderFailures[agent.Provider]++
		}
		return contrib
	}

	contrib.Content = res.resp.Text
	contrib.Provider = res.resp.Provider
	contrib.Latency = res.resp.Latency
	contrib.Retries = res.resp.Retries
	if res.resp.Retries > 0 {
		contrib.Outcome = core.OutcomeRetriedSuccess
	} else {
		contrib.Outcome = core.OutcomeSuccess
	}

	if stance, ok := ParseStance(res.resp.Text); ok {
		sess.SetStance(agent.ID, stance)
		if err := s.mem.SetActive(context.Background(), sess.ID, StanceKeyPrefix+agent.ID, string(stance), 0); err != nil {
			s.opts.Logger.Warn("stance update failed", "session_id", sess.ID, "agent_id", agent.ID, "error", err.Error())
		}
	}
	return contrib
}

// record appends the contribution to durable history. Failure metadata rides
// along so audits can distinguish failure causes without parsing content.
func (s *Scheduler) record(ctx context.Context, sess *core.Session, contrib core.Contribution, turnErr error) error {
	md := map[string]any{
		"contribution_id": contrib.ID,
		"position":        contrib.Position,
		"provider":        contrib.Provider,
		"outcome":         string(contrib.Outcome),
		"latency_ms":      contrib.Latency.Milliseconds(),
	}
	if contrib.Retries > 0 {
		md["retries"] = contrib.Retries
	}
	if turnErr != nil {
		md["error"] = turnErr.Error()
	}
	return s.mem.AppendHistory(ctx, sess.ID, core.HistoryRecord{
		ID:        contrib.ID,
		Kind:      core.RecordContribution,
		Round:     contrib.Round,
		AgentID:   contrib.AgentID,
		AgentName: contrib.AgentName,
		Content:   contrib.Content,
		Metadata:  md,
		Timestamp: contrib.Timestamp,
	})
}

// buildRequest assembles an agent's reasoning request from memory. Storage
// unavailability here is non-fatal: the turn proceeds with whatever context
// could be loaded, empty in the worst case.
func (s *Scheduler) buildRequest(ctx context.Context, sess *core.Session, agent core.Agent, round int, interventions []string) core.ReasoningRequest {
	pc := promptContext{round: round, interventions: interventions, stance: agent.Stance}

	since := round - s.opts.HistoryWindow
	if since < 1 {
		since = 1
	}
	records, err := s.mem.HistorySince(ctx, sess.ID, since)
	if err != nil {
		s.opts.Logger.Warn("context degraded to empty history", "session_id", sess.ID, "agent_id", agent.ID, "error", err.Error())
	} else {
		for _, rec := range records {
			if rec.Kind != core.RecordContribution || rec.Content == "" {
				continue
			}
			pc.recent = append(pc.recent, rec)
			if rec.AgentID == agent.ID {
				pc.own = append(pc.own, rec)
			}
		}
	}

	if v, ok, err := s.mem.GetActive(ctx, sess.ID, StanceKeyPrefix+agent.ID); err == nil && ok {
		if str, ok := v.(string); ok {
			pc.stance = core.Stance(str)
		}
	}

	return core.ReasoningRequest{
		Instructions: BuildInstructions(agent, sess.Scenario),
		Prompt:       BuildPrompt(agent, sess.Scenario, pc),
		Constraints:  s.opts.Constraints,
	}
}
