// Package core defines the shared data model and capability interfaces of
// DebateMesh: sessions, agents, turn contributions, consensus verdicts and
// events, plus the MemoryGateway / ReasoningGateway / Publisher contracts
// implemented elsewhere and injected into the orchestration components.
//
// The package is deliberately free of orchestration logic so that every other
// package can depend on it without cycles.
package core
