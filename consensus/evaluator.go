// Package consensus decides whether a debate has converged. Evaluation runs
// after each round over the agents' self-reported stances (and, for Borda
// counting, their ranked proposals held in active memory); free contribution
// text is never re-parsed here.
package consensus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// RankingKeyPrefix is the active-memory key prefix under which per-agent
// proposal rankings are stored ("ranking:<agentID>" -> []string, best first).
const RankingKeyPrefix = "ranking:"

// Options configures an Evaluator.
type Options struct {
	// Threshold is the agree fraction required by simple_majority and
	// weighted. Default 0.6.
	Threshold float64
	// BordaMargin is the point lead the winner must hold over the runner-up.
	// Default 1.
	BordaMargin float64
	// MinAgents is the minimum active participant count below which
	// evaluation fails with ErrInsufficientParticipants. Default 2.
	MinAgents int
	// Logger receives evaluation diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Evaluator computes consensus verdicts. It reads proposal rankings through
// the memory gateway but never writes: evaluation is a pure observer of
// session state.
type Evaluator struct {
	mem  core.MemoryGateway
	opts Options
}

// New creates an Evaluator over the given memory gateway.
func New(mem core.MemoryGateway, optFns ...func(o *Options)) *Evaluator {
	opts := Options{
		Threshold:   0.6,
		BordaMargin: 1,
		MinAgents:   2,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{mem: mem, opts: opts}
}

// Evaluate produces a verdict for the given round over the active agents.
// Ties under majority methods always resolve to "not reached": consensus is
// never declared silently on a split vote.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string, round int, agents []core.Agent, method core.Method) (core.Verdict, error) {
	if len(agents) < e.opts.MinAgents {
		return core.Verdict{}, fmt.Errorf("%w: %d active, need %d", core.ErrInsufficientParticipants, len(agents), e.opts.MinAgents)
	}

	verdict := core.Verdict{
		Round:     round,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}

	switch method {
	case core.MethodSimpleMajority:
		e.tally(&verdict, agents, false)
	case core.MethodWeighted:
		e.tally(&verdict, agents, true)
	case core.MethodBordaCount:
		if err := e.borda(ctx, &verdict, sessionID, agents); err != nil {
			return core.Verdict{}, err
		}
	default:
		return core.Verdict{}, &core.ValidationError{Field: "method", Reason: "unknown method " + string(method)}
	}

	e.opts.Logger.Debug("consensus evaluated",
		"session_id", sessionID, "round", round, "method", string(method),
		"score", verdict.Score, "reached", verdict.Reached)
	return verdict, nil
}

// tally implements simple_majority and its weighted variant. Reached requires
// the agree share to meet the threshold AND strictly exceed the disagree
// share, so an exact tie schedules another round instead of declaring
// agreement.
func (e *Evaluator) tally(verdict *core.Verdict, agents []core.Agent, weighted bool) {
	tallies := map[core.Stance]float64{}
	var total float64
	for _, a := range agents {
		w := 1.0
		if weighted {
			w = a.EffectiveWeight()
		}
		stance := a.Stance
		if !stance.Valid() {
			stance = core.StanceNeutral
		}
		tallies[stance] += w
		total += w
	}
	verdict.Tallies = tallies
	if total > 0 {
		verdict.Score = tallies[core.StanceAgree] / total
	}
	verdict.Reached = verdict.Score >= e.opts.Threshold &&
		tallies[core.StanceAgree] > tallies[core.StanceDisagree]
}

// borda sums rank points (n-1 for first place down to 0) over every agent's
// ranked proposal list from active memory. Consensus requires the top
// proposal to lead the runner-up by at least the configured margin.
func (e *Evaluator) borda(ctx context.Context, verdict *core.Verdict, sessionID string, agents []core.Agent) error {
	points := map[string]float64{}
	var totalPoints, voters float64
	for _, a := range agents {
		v, ok, err := e.mem.GetActive(ctx, sessionID, RankingKeyPrefix+a.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ranking := toStrings(v)
		if len(ranking) == 0 {
			continue
		}
		voters++
		n := len(ranking)
		for pos, proposal := range ranking {
			pts := float64(n - 1 - pos)
			points[proposal] += pts
			totalPoints += pts
		}
	}
	if voters == 0 {
		verdict.Reached = false
		return nil
	}

	ranking := make([]core.RankedOutcome, 0, len(points))
	for proposal, pts := range points {
		ranking = append(ranking, core.RankedOutcome{Proposal: proposal, Score: pts})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].Proposal < ranking[j].Proposal
	})
	verdict.Ranking = ranking

	top := ranking[0].Score
	runnerUp := 0.0
	if len(ranking) > 1 {
		runnerUp = ranking[1].Score
	}
	if totalPoints > 0 {
		verdict.Score = top / totalPoints
	}
	verdict.Reached = top-runnerUp >= e.opts.BordaMargin
	return nil
}

// toStrings accepts []string or []any (the shape JSON decoding produces) from
// active memory.
func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
