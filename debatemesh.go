// Package debatemesh provides a high-level façade over the core engine and
// service abstractions (memory, reasoning, selection, consensus & logging)
// enabling rapid construction of multi-agent debate systems. Most
// applications interact with this package by:
//  1. Creating a DebateMesh via New() (optionally overriding default in-memory services)
//  2. Registering one or more reasoning providers (anthropic, openai, mock, custom)
//  3. Creating a session over a scenario and agent roster, starting it and
//     consuming its event stream (or running it synchronously via RunSync)
//
// The façade delegates orchestration to engine.Manager while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable memory
// gateway and a structured logger.
package debatemesh

import (
	"context"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/engine"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/memory"
	"github.com/hupe1980/debatemesh/pubsub"
	"github.com/hupe1980/debatemesh/reasoning"
	"github.com/hupe1980/debatemesh/selector"
)

// Options configures the DebateMesh instance.
type Options struct {
	// EngineConfig carries lifecycle parameters (minimum roster size,
	// default round budget, event buffering, consensus method).
	EngineConfig engine.Config

	// Strategy selects how providers are assigned to agents at session
	// creation. Defaults to role_matched.
	Strategy selector.Strategy

	// Memory is the two-tier session memory (defaults to in-memory).
	Memory core.MemoryGateway

	// Reasoning resolves provider ids to backends. Defaults to an empty
	// gateway; register providers via RegisterProvider before creating
	// sessions.
	Reasoning *reasoning.Gateway

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// DebateMesh is the high-level façade aggregating the underlying manager and
// services.
type DebateMesh struct {
	opts    Options
	gateway *reasoning.Gateway
	manager *engine.Manager
}

// New creates a new DebateMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *DebateMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Strategy:     selector.StrategyRoleMatched,
		Memory:       memory.NewInMemoryGateway(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Reasoning == nil {
		opts.Reasoning = reasoning.New(func(o *reasoning.Options) { o.Logger = opts.Logger })
	}

	m := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Memory = opts.Memory
		o.Reasoning = opts.Reasoning
		o.Logger = opts.Logger
	})

	return &DebateMesh{opts: opts, gateway: opts.Reasoning, manager: m}
}

// RegisterProvider adds a reasoning provider under a logical id, making it
// assignable to agents.
func (d *DebateMesh) RegisterProvider(id string, p reasoning.Provider) {
	d.gateway.Register(id, p)
}

// CreateSession validates the scenario and roster, assigns providers and
// returns the new session id. A zero budget uses the configured default.
func (d *DebateMesh) CreateSession(ctx context.Context, scenario string, agents []core.Agent, roundBudget int) (string, error) {
	return d.manager.CreateSession(ctx, scenario, agents, roundBudget, d.opts.Strategy)
}

// Start begins the asynchronous debate loop for a created session.
func (d *DebateMesh) Start(ctx context.Context, sessionID string) error {
	return d.manager.Start(ctx, sessionID)
}

// Pause stops further turn dispatch; in-flight calls finish naturally.
func (d *DebateMesh) Pause(sessionID string) error { return d.manager.Pause(sessionID) }

// Resume continues a paused session from the turn cursor.
func (d *DebateMesh) Resume(sessionID string) error { return d.manager.Resume(sessionID) }

// ForceFinalize completes the session immediately, regardless of consensus.
func (d *DebateMesh) ForceFinalize(ctx context.Context, sessionID string) error {
	return d.manager.ForceFinalize(ctx, sessionID)
}

// Reopen moves a completed session back to debating with a fresh round
// budget, marking prior consensus as overridden.
func (d *DebateMesh) Reopen(sessionID string, roundBudget int) error {
	return d.manager.Reopen(sessionID, roundBudget)
}

// InjectContext queues moderator text for every agent's next turn.
func (d *DebateMesh) InjectContext(ctx context.Context, sessionID, text string) error {
	return d.manager.InjectContext(ctx, sessionID, text)
}

// RemoveAgent soft-removes an agent from the session roster.
func (d *DebateMesh) RemoveAgent(sessionID, agentID string) error {
	return d.manager.RemoveAgent(sessionID, agentID)
}

// GetSession returns a point-in-time snapshot of the session.
func (d *DebateMesh) GetSession(sessionID string) (*core.Session, error) {
	return d.manager.GetSession(sessionID)
}

// GetHistory returns the session's contributions in recorded order,
// optionally restricted to rounds >= sinceRound (0 returns everything).
func (d *DebateMesh) GetHistory(ctx context.Context, sessionID string, sinceRound int) ([]core.Contribution, error) {
	return d.manager.GetHistory(ctx, sessionID, sinceRound)
}

// Stats summarizes the session's progress.
func (d *DebateMesh) Stats(ctx context.Context, sessionID string) (engine.Stats, error) {
	return d.manager.Stats(ctx, sessionID)
}

// Subscribe returns the session's event channel and a cancel function.
// Delivery is at-least-once; consumers dedupe by event id.
func (d *DebateMesh) Subscribe(sessionID string) (<-chan core.Event, func(), error) {
	return d.manager.Subscribe(sessionID)
}

// Wait blocks until the session's debate loop exits or ctx is done.
func (d *DebateMesh) Wait(ctx context.Context, sessionID string) error {
	return d.manager.Wait(ctx, sessionID)
}

// Shutdown cancels all debate loops and waits for them to exit.
func (d *DebateMesh) Shutdown(ctx context.Context) error { return d.manager.Shutdown(ctx) }

// RunSync is a synchronous helper: it starts the session, drains its event
// stream until the debate terminates and returns the collected events with
// the final session snapshot.
func (d *DebateMesh) RunSync(ctx context.Context, sessionID string) (*core.Session, []core.Event, error) {
	eventsCh, cancel, err := d.manager.Subscribe(sessionID)
	if err != nil {
		return nil, nil, err
	}
	defer cancel()

	if err := d.manager.Start(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = d.manager.Wait(ctx, sessionID)
	}()

	var events []core.Event
	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			snap, _ := d.manager.GetSession(sessionID)
			return snap, events, ctx.Err()

		case ev := <-eventsCh:
			// At-least-once delivery: drop duplicates by event id.
			if seen[ev.ID] {
				continue
			}

			seen[ev.ID] = true
			events = append(events, ev)

		case <-done:
			// Drain whatever the bus already buffered before the loop exited.
			for {
				select {
				case ev := <-eventsCh:
					if !seen[ev.ID] {
						seen[ev.ID] = true
						events = append(events, ev)
					}

					continue
				default:
				}

				break
			}

			snap, err := d.manager.GetSession(sessionID)

			return snap, events, err
		}
	}
}

// NewBus exposes a standalone event bus for callers that integrate the
// manager with an external transport.
func NewBus(optFns ...func(o *pubsub.Options)) *pubsub.Bus { return pubsub.New(optFns...) }
