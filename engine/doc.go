// Package engine provides the top-level session manager for debate
// orchestration.
//
// The Manager owns session identity and the status state machine
// (created, debating, paused, completed, errored) and composes the other
// components behind the lifecycle operations:
//
//   - selector assigns a reasoning provider to every agent at creation
//   - scheduler executes one round at a time, fan-out bounded, with
//     contributions recorded strictly in turn order
//   - consensus evaluates agreement after each full round
//   - memory holds active state and the durable session history
//   - pubsub streams session_update, turn_completed, turn_failed,
//     round_completed and consensus_reached events to subscribers
//
// Each started session runs one debate loop goroutine; distinct sessions
// progress fully in parallel and share no mutable state beyond the injected
// gateways, which are safe for concurrent use.
//
// Basic usage:
//
//	gw := reasoning.New()
//	gw.Register("mock", reasoning.NewMockProvider("mock"))
//
//	mgr := engine.New(func(o *engine.Options) {
//	    o.Reasoning = gw
//	})
//
//	id, err := mgr.CreateSession(ctx, scenario, agents, 5, selector.StrategyRoleMatched)
//	if err != nil {
//	    return err
//	}
//
//	events, cancel, _ := mgr.Subscribe(id)
//	defer cancel()
//
//	if err := mgr.Start(ctx, id); err != nil {
//	    return err
//	}
//
//	for ev := range events {
//	    // react to debate progress
//	}
package engine
