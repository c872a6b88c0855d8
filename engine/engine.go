package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/debatemesh/consensus"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/memory"
	"github.com/hupe1980/debatemesh/pubsub"
	"github.com/hupe1980/debatemesh/reasoning"
	"github.com/hupe1980/debatemesh/scheduler"
	"github.com/hupe1980/debatemesh/selector"
)

// Config defines tuning parameters for the Manager's session lifecycle
// behavior.
//
// These values govern validation and loop control only. Per-round behavior
// (fan-out, timeouts, history window) lives in scheduler.Options, and
// consensus thresholds in consensus.Options; configure those through the
// respective functional options when constructing a custom Scheduler or
// Evaluator.
type Config struct {
	// MinAgents is the minimum roster size a session must keep. Creation
	// with fewer agents is rejected; removal below it keeps the session
	// debating but consensus evaluation reports insufficient participants.
	MinAgents int

	// DefaultRoundBudget is used when CreateSession is given a zero budget.
	DefaultRoundBudget int

	// ProviderFailureLimit is the number of provider_unavailable turn
	// failures (per provider, per session) that triggers the one-time
	// re-assignment of affected agents to surviving providers.
	ProviderFailureLimit int

	// EventBuffer is the channel buffer handed to Subscribe.
	EventBuffer int

	// ConsensusMethod is the evaluation method applied after each round.
	ConsensusMethod core.Method

	// Diversity is the selector's diversity preference in [0,1] used at
	// session creation.
	Diversity float64
}

// DefaultConfig provides production-ready defaults.
//
// Configuration values:
//   - MinAgents: 2 (a debate needs at least two voices)
//   - DefaultRoundBudget: 10
//   - ProviderFailureLimit: 2
//   - EventBuffer: 100
//   - ConsensusMethod: simple_majority
//   - Diversity: 0.5
var DefaultConfig = Config{
	MinAgents:            2,
	DefaultRoundBudget:   10,
	ProviderFailureLimit: 2,
	EventBuffer:          100,
	ConsensusMethod:      core.MethodSimpleMajority,
	Diversity:            0.5,
}

// Options configures a Manager using the functional options pattern.
//
// All service dependencies have in-memory defaults so that a bare New() is
// immediately usable for development and testing. Production setups supply
// a durable MemoryGateway and a ReasoningGateway with real providers.
type Options struct {
	// Config contains lifecycle parameters. Defaults to DefaultConfig.
	Config Config

	// Memory is the two-tier session memory. Defaults to the in-memory
	// implementation.
	Memory core.MemoryGateway

	// Reasoning resolves provider ids to reasoning backends. Defaults to an
	// empty gateway; register providers before creating sessions.
	Reasoning core.ReasoningGateway

	// Bus carries per-session events. Defaults to an in-process bus.
	Bus *pubsub.Bus

	// Selector assigns providers to agents. Defaults to the affinity-table
	// selector.
	Selector *selector.Selector

	// Evaluator decides consensus after each round. Defaults to an
	// evaluator over Memory with default thresholds.
	Evaluator *consensus.Evaluator

	// Scheduler executes rounds. Defaults to a scheduler over Memory,
	// Reasoning and Bus with default options.
	Scheduler *scheduler.Scheduler

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Stats summarizes one session for observability surfaces.
type Stats struct {
	SessionID        string      `json:"session_id"`
	Status           core.Status `json:"status"`
	Round            int         `json:"round"`
	ActiveAgents     int         `json:"active_agents"`
	Messages         int         `json:"messages"`
	ConsensusReached bool        `json:"consensus_reached"`
}

// sessionState is the Manager's per-session runtime bookkeeping, separate
// from the core.Session data it wraps.
type sessionState struct {
	sess   *core.Session
	paused atomic.Bool
	// resume wakes the debate loop out of a pause. Buffered so Resume never
	// blocks when the loop is mid-round.
	resume chan struct{}

	// mu guards the fields below; spawnLoop swaps cancel and done on every
	// (re)start while Wait and Shutdown read them concurrently.
	mu     sync.Mutex
	cancel context.CancelFunc
	// done closes when the debate loop exits, for Reopen and shutdown.
	done             chan struct{}
	providerFailures map[string]int
	reassigned       bool
}

// loop returns the current cancel/done pair under the state lock.
func (st *sessionState) loop() (context.CancelFunc, chan struct{}) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cancel, st.done
}

// Manager is the top-level session state machine. It owns session identity
// and status transitions and composes the selector, scheduler, evaluator and
// memory behind the lifecycle operations.
//
// One debate loop goroutine runs per started session; distinct sessions run
// fully in parallel. All public methods are safe for concurrent use.
type Manager struct {
	cfg    Config
	mem    core.MemoryGateway
	gw     core.ReasoningGateway
	bus    *pubsub.Bus
	sel    *selector.Selector
	eval   *consensus.Evaluator
	sched  *scheduler.Scheduler
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
	// agentSessions enforces that one agent id debates in at most one
	// session at a time.
	agentSessions map[string]string
}

// New creates a Manager with in-memory defaults for every dependency not
// supplied via options.
//
// Example:
//
//	gw := reasoning.New()
//	gw.Register("openai", openaiProvider)
//	gw.Register("anthropic", anthropicProvider)
//
//	mgr := engine.New(func(o *engine.Options) {
//	    o.Reasoning = gw
//	    o.Logger = logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	})
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryGateway()
	}

	if opts.Reasoning == nil {
		opts.Reasoning = reasoning.New(func(o *reasoning.Options) { o.Logger = opts.Logger })
	}

	if opts.Bus == nil {
		opts.Bus = pubsub.New(func(o *pubsub.Options) { o.Logger = opts.Logger })
	}

	if opts.Selector == nil {
		opts.Selector = selector.New(func(o *selector.Options) { o.Logger = opts.Logger })
	}

	if opts.Evaluator == nil {
		opts.Evaluator = consensus.New(opts.Memory, func(o *consensus.Options) {
			o.MinAgents = opts.Config.MinAgents
			o.Logger = opts.Logger
		})
	}

	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New(opts.Memory, opts.Reasoning, opts.Bus, func(o *scheduler.Options) {
			o.Logger = opts.Logger
		})
	}

	return &Manager{
		cfg:           opts.Config,
		mem:           opts.Memory,
		gw:            opts.Reasoning,
		bus:           opts.Bus,
		sel:           opts.Selector,
		eval:          opts.Evaluator,
		sched:         opts.Scheduler,
		logger:        opts.Logger,
		sessions:      make(map[string]*sessionState),
		agentSessions: make(map[string]string),
	}
}

// CreateSession validates parameters, assigns a provider to every agent and
// registers the session in the created state. Creation is synchronous and
// emits no events; a zero budget falls back to DefaultRoundBudget.
//
// Validation failures return *core.ValidationError and leave no trace of the
// session.
func (m *Manager) CreateSession(ctx context.Context, scenario string, agents []core.Agent, budget int, strategy selector.Strategy) (string, error) {
	if strings.TrimSpace(scenario) == "" {
		return "", &core.ValidationError{Field: "scenario", Reason: "must not be empty"}
	}

	if len(agents) < m.cfg.MinAgents {
		return "", &core.ValidationError{Field: "agents", Reason: fmt.Sprintf("need at least %d agents, got %d", m.cfg.MinAgents, len(agents))}
	}

	if budget < 0 {
		return "", &core.ValidationError{Field: "round_budget", Reason: "must not be negative"}
	}

	if budget == 0 {
		budget = m.cfg.DefaultRoundBudget
	}

	providers := m.gw.Providers()
	if len(providers) == 0 {
		return "", &core.ValidationError{Field: "providers", Reason: "no reasoning providers registered"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range agents {
		if a.ID == "" {
			continue
		}

		if other, ok := m.agentSessions[a.ID]; ok {
			return "", &core.ValidationError{Field: "agents", Reason: fmt.Sprintf("agent %s already active in session %s", a.ID, other)}
		}
	}

	assignment, err := m.sel.Assign(agents, providers, strategy, m.cfg.Diversity)
	if err != nil {
		return "", err
	}

	sess := core.NewSession(scenario, agents)
	sess.RoundBudget = budget
	sess.SetProviders(assignment)

	// Fresh session, fresh working memory. Guarantees no active state bleeds
	// in from an unrelated debate that happened to reuse a key.
	if err := m.mem.PurgeActive(ctx, sess.ID); err != nil {
		return "", fmt.Errorf("purge active state: %w", err)
	}

	for _, a := range sess.ActiveAgents() {
		if err := m.mem.SetActive(ctx, sess.ID, scheduler.StanceKeyPrefix+a.ID, string(a.Stance), 0); err != nil {
			return "", fmt.Errorf("seed stance for agent %s: %w", a.ID, err)
		}
	}

	st := &sessionState{
		sess:             sess,
		resume:           make(chan struct{}, 1),
		providerFailures: make(map[string]int),
	}
	m.sessions[sess.ID] = st

	for _, a := range sess.Agents {
		m.agentSessions[a.ID] = sess.ID
	}

	m.logger.Info("session created", "session_id", sess.ID, "agents", len(agents), "round_budget", budget, "strategy", string(strategy))

	return sess.ID, nil
}

// Start transitions the session to debating and spawns its debate loop. The
// loop runs until consensus, budget exhaustion, an error transition or
// ForceFinalize; Start itself returns immediately.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	if err := st.sess.Transition(core.StatusDebating); err != nil {
		return err
	}

	m.publishStatus(st.sess)
	m.spawnLoop(st)

	return nil
}

// spawnLoop starts the debate loop goroutine with its own cancellation
// context, detached from any caller context so the debate outlives the
// request that started it.
func (m *Manager) spawnLoop(st *sessionState) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	st.mu.Lock()
	st.cancel = cancel
	st.done = done
	st.mu.Unlock()

	go func() {
		defer close(done)
		m.debateLoop(loopCtx, st)
	}()
}

// debateLoop is the per-session round → evaluate → transition cycle.
func (m *Manager) debateLoop(ctx context.Context, st *sessionState) {
	sess := st.sess

	for {
		if ctx.Err() != nil {
			return
		}

		if st.paused.Load() {
			select {
			case <-st.resume:
				continue
			case <-ctx.Done():
				return
			}
		}

		if sess.GetStatus() != core.StatusDebating {
			return
		}

		// Budget check before starting a new round, not mid-round: a resumed
		// round at the budget boundary still runs to completion.
		if sess.Cursor() == 0 && sess.CurrentRound() >= sess.RoundBudget {
			m.finish(sess)
			return
		}

		report, err := m.sched.RunRound(ctx, sess, func() bool {
			return st.paused.Load() || ctx.Err() != nil
		})
		if err != nil {
			m.fail(sess, err)
			return
		}

		if report.Interrupted {
			// Pause or shutdown stopped dispatch mid-round. The cursor marks
			// where the next iteration resumes.
			continue
		}

		m.trackProviderFailures(st, report)

		verdict, err := m.eval.Evaluate(ctx, sess.ID, report.Round, sess.ActiveAgents(), m.cfg.ConsensusMethod)
		if err != nil {
			if errors.Is(err, core.ErrInsufficientParticipants) {
				m.logger.Warn("skipping verdict", "session_id", sess.ID, "round", report.Round, "reason", err.Error())
				continue
			}

			m.fail(sess, err)
			return
		}

		sess.RecordVerdict(verdict)
		m.recordVerdict(ctx, sess, verdict)

		if verdict.Reached {
			m.bus.Publish(core.NewConsensusEvent(sess.ID, verdict))
			m.finish(sess)
			return
		}
	}
}

// finish completes the session. ConsensusReached stays false on budget
// exhaustion; a reached verdict will have latched it true already.
func (m *Manager) finish(sess *core.Session) {
	if err := sess.Transition(core.StatusCompleted); err != nil {
		m.logger.Error("complete transition failed", "session_id", sess.ID, "error", err.Error())
		return
	}

	m.publishStatus(sess)
	m.logger.Info("session completed", "session_id", sess.ID, "round", sess.CurrentRound(), "consensus_reached", sess.Snapshot().ConsensusReached)
}

// fail transitions the session to errored and surfaces the cause in the
// session_update event payload.
func (m *Manager) fail(sess *core.Session, cause error) {
	m.logger.Error("debate loop aborted", "session_id", sess.ID, "error", cause.Error())

	if err := sess.Transition(core.StatusErrored); err != nil {
		m.logger.Error("errored transition failed", "session_id", sess.ID, "error", err.Error())
		return
	}

	ev := core.NewSessionUpdateEvent(sess.ID, core.StatusErrored, sess.CurrentRound())
	ev.Payload = map[string]any{"error": cause.Error()}
	m.bus.Publish(ev)
}

// trackProviderFailures accumulates provider_unavailable counts and, once a
// provider crosses the limit, re-assigns its agents to surviving providers.
// Re-assignment happens at most once per session to minimize churn.
func (m *Manager) trackProviderFailures(st *sessionState, report scheduler.RoundReport) {
	if len(report.ProviderFailures) == 0 {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.reassigned {
		return
	}

	var dead string

	for provider, n := range report.ProviderFailures {
		st.providerFailures[provider] += n
		if st.providerFailures[provider] >= m.cfg.ProviderFailureLimit {
			dead = provider
		}
	}

	if dead == "" {
		return
	}

	sess := st.sess
	agents := sess.ActiveAgents()

	current := make(map[string]string, len(agents))
	for _, a := range agents {
		current[a.ID] = a.Provider
	}

	next := m.sel.Reassign(current, agents, dead, m.gw.Providers())
	sess.SetProviders(next)
	st.reassigned = true

	m.logger.Warn("provider re-assigned after repeated failures", "session_id", sess.ID, "dead_provider", dead, "failures", st.providerFailures[dead])
}

// recordVerdict appends the verdict to the durable history so the audit
// trail interleaves contributions and verdicts in round order.
func (m *Manager) recordVerdict(ctx context.Context, sess *core.Session, v core.Verdict) {
	rec := core.HistoryRecord{
		ID:      core.NewID(),
		Kind:    core.RecordVerdict,
		Round:   v.Round,
		Content: fmt.Sprintf("method=%s reached=%t score=%.2f", v.Method, v.Reached, v.Score),
		Metadata: map[string]any{
			"method":  string(v.Method),
			"reached": v.Reached,
			"score":   v.Score,
		},
		Timestamp: time.Now().UTC(),
	}

	if err := m.mem.AppendHistory(ctx, sess.ID, rec); err != nil {
		m.logger.Warn("verdict not persisted to history", "session_id", sess.ID, "round", v.Round, "error", err.Error())
	}
}

// Pause stops further turn dispatch for the session. Already-dispatched
// reasoning calls finish or time out naturally; the round resumes at the turn
// cursor on Resume.
func (m *Manager) Pause(sessionID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	if err := st.sess.Transition(core.StatusPaused); err != nil {
		return err
	}

	st.paused.Store(true)
	m.publishStatus(st.sess)

	return nil
}

// Resume continues a paused session from the turn cursor. Completed turns of
// the interrupted round are never re-run.
func (m *Manager) Resume(sessionID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	if err := st.sess.Transition(core.StatusDebating); err != nil {
		return err
	}

	st.paused.Store(false)

	select {
	case st.resume <- struct{}{}:
	default:
	}

	m.publishStatus(st.sess)

	return nil
}

// ForceFinalize completes the session immediately, regardless of consensus.
// The latest verdict (if any) is summarized into a final decision history
// record.
func (m *Manager) ForceFinalize(ctx context.Context, sessionID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	st.paused.Store(true)

	if err := st.sess.Transition(core.StatusCompleted); err != nil {
		return err
	}

	if cancel, _ := st.loop(); cancel != nil {
		cancel()
	}

	m.recordFinalDecision(ctx, st.sess)
	m.publishStatus(st.sess)

	return nil
}

// recordFinalDecision appends a closing history record derived from the
// latest verdict ranking, or a neutral note when no verdict exists yet.
func (m *Manager) recordFinalDecision(ctx context.Context, sess *core.Session) {
	content := "debate finalized by moderator before any verdict"

	if v, ok := sess.LatestVerdict(); ok {
		if len(v.Ranking) > 0 {
			content = fmt.Sprintf("final decision: %s (method=%s, score=%.2f)", v.Ranking[0].Proposal, v.Method, v.Score)
		} else {
			content = fmt.Sprintf("final decision by %s: reached=%t score=%.2f", v.Method, v.Reached, v.Score)
		}
	}

	rec := core.HistoryRecord{
		ID:        core.NewID(),
		Kind:      core.RecordVerdict,
		Round:     sess.CurrentRound(),
		Content:   content,
		Metadata:  map[string]any{"forced": true},
		Timestamp: time.Now().UTC(),
	}

	if err := m.mem.AppendHistory(ctx, sess.ID, rec); err != nil {
		m.logger.Warn("final decision not persisted", "session_id", sess.ID, "error", err.Error())
	}
}

// Reopen moves a completed session back to debating with a fresh round
// budget and marks any prior consensus as overridden, then restarts the
// debate loop.
func (m *Manager) Reopen(sessionID string, budget int) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	if budget <= 0 {
		budget = m.cfg.DefaultRoundBudget
	}

	if err := st.sess.Reopen(budget); err != nil {
		return err
	}

	st.paused.Store(false)

	st.mu.Lock()
	st.providerFailures = make(map[string]int)
	st.reassigned = false
	st.mu.Unlock()

	m.publishStatus(st.sess)
	m.spawnLoop(st)

	return nil
}

// InjectContext queues moderator text for delivery to every agent in the
// next dispatched turns and appends it to the session history.
func (m *Manager) InjectContext(ctx context.Context, sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return &core.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	st.sess.AddIntervention(text)

	rec := core.HistoryRecord{
		ID:        core.NewID(),
		Kind:      core.RecordIntervention,
		Round:     st.sess.CurrentRound(),
		Content:   text,
		Timestamp: time.Now().UTC(),
	}

	if err := m.mem.AppendHistory(ctx, sessionID, rec); err != nil {
		return fmt.Errorf("persist intervention: %w", err)
	}

	return nil
}

// RemoveAgent soft-removes an agent from the roster. The session keeps
// debating even below MinAgents; consensus evaluation then reports
// insufficient participants until the roster recovers via Reopen.
func (m *Manager) RemoveAgent(sessionID, agentID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	if err := st.sess.Remove(agentID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.agentSessions, agentID)
	m.mu.Unlock()

	m.logger.Info("agent removed", "session_id", sessionID, "agent_id", agentID, "active_agents", len(st.sess.ActiveAgents()))

	return nil
}

// GetSession returns a deep snapshot of the session, safe to read without
// synchronization.
func (m *Manager) GetSession(sessionID string) (*core.Session, error) {
	st, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}

	return st.sess.Snapshot(), nil
}

// GetHistory returns the session's contributions in recorded order,
// optionally restricted to rounds >= sinceRound.
func (m *Manager) GetHistory(ctx context.Context, sessionID string, sinceRound int) ([]core.Contribution, error) {
	if _, err := m.state(sessionID); err != nil {
		return nil, err
	}

	recs, err := m.mem.HistorySince(ctx, sessionID, sinceRound)
	if err != nil {
		return nil, err
	}

	contribs := make([]core.Contribution, 0, len(recs))

	for _, rec := range recs {
		if rec.Kind != core.RecordContribution {
			continue
		}

		contribs = append(contribs, contributionFromRecord(sessionID, rec))
	}

	return contribs, nil
}

// contributionFromRecord rebuilds a Contribution from its history record and
// metadata. Missing metadata fields degrade to zero values rather than
// failing the read.
func contributionFromRecord(sessionID string, rec core.HistoryRecord) core.Contribution {
	c := core.Contribution{
		SessionID: sessionID,
		Round:     rec.Round,
		AgentID:   rec.AgentID,
		AgentName: rec.AgentName,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
	}

	md := rec.Metadata

	if id, ok := md["contribution_id"].(string); ok {
		c.ID = id
	}

	if pos, ok := md["position"].(int); ok {
		c.Position = pos
	}

	if provider, ok := md["provider"].(string); ok {
		c.Provider = provider
	}

	if outcome, ok := md["outcome"].(string); ok {
		c.Outcome = core.Outcome(outcome)
	}

	if ms, ok := md["latency_ms"].(int64); ok {
		c.Latency = time.Duration(ms) * time.Millisecond
	}

	if retries, ok := md["retries"].(int); ok {
		c.Retries = retries
	}

	return c
}

// Stats summarizes the session's progress from its snapshot and history.
func (m *Manager) Stats(ctx context.Context, sessionID string) (Stats, error) {
	st, err := m.state(sessionID)
	if err != nil {
		return Stats{}, err
	}

	snap := st.sess.Snapshot()

	recs, err := m.mem.HistorySince(ctx, sessionID, 0)
	if err != nil {
		return Stats{}, err
	}

	messages := 0

	for _, rec := range recs {
		if rec.Kind == core.RecordContribution {
			messages++
		}
	}

	return Stats{
		SessionID:        sessionID,
		Status:           snap.Status,
		Round:            snap.Round,
		ActiveAgents:     len(st.sess.ActiveAgents()),
		Messages:         messages,
		ConsensusReached: snap.ConsensusReached,
	}, nil
}

// Subscribe returns the session's event channel and a cancel function.
// Delivery is at-least-once; consumers dedupe by event id.
func (m *Manager) Subscribe(sessionID string) (<-chan core.Event, func(), error) {
	if _, err := m.state(sessionID); err != nil {
		return nil, nil, err
	}

	ch, cancel := m.bus.Subscribe(sessionID, m.cfg.EventBuffer)

	return ch, cancel, nil
}

// Shutdown cancels every debate loop and waits for them to exit. Sessions
// are left in their current status; no transitions are forced.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	states := make([]*sessionState, 0, len(m.sessions))
	for _, st := range m.sessions {
		states = append(states, st)
	}
	m.mu.RUnlock()

	for _, st := range states {
		if cancel, _ := st.loop(); cancel != nil {
			cancel()
		}
	}

	for _, st := range states {
		_, done := st.loop()
		if done == nil {
			continue
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Wait blocks until the session's debate loop exits or the context is done.
// Returns immediately for sessions that were never started.
func (m *Manager) Wait(ctx context.Context, sessionID string) error {
	st, err := m.state(sessionID)
	if err != nil {
		return err
	}

	_, done := st.loop()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) state(sessionID string) (*sessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrSessionNotFound)
	}

	return st, nil
}

func (m *Manager) publishStatus(sess *core.Session) {
	m.bus.Publish(core.NewSessionUpdateEvent(sess.ID, sess.GetStatus(), sess.CurrentRound()))
}
