package core

import "time"

// Method selects the consensus evaluation algorithm.
type Method string

const (
	// MethodSimpleMajority compares the agree fraction of active agents
	// against a threshold. Ties never reach consensus.
	MethodSimpleMajority Method = "simple_majority"
	// MethodBordaCount sums rank points over competing proposals; consensus
	// requires the winner to beat the runner-up by a configured margin.
	MethodBordaCount Method = "borda_count"
	// MethodWeighted is simple majority with per-agent vote weights.
	MethodWeighted Method = "weighted"
)

// RankedOutcome is one proposal with its aggregate score.
type RankedOutcome struct {
	Proposal string  `json:"proposal"`
	Score    float64 `json:"score"`
}

// Verdict is the outcome of evaluating agreement after a round. Verdicts are
// retained for audit and never overwritten.
type Verdict struct {
	Round     int                `json:"round"`
	Method    Method             `json:"method"`
	Score     float64            `json:"score"` // 0.0 - 1.0 agreement level
	Reached   bool               `json:"reached"`
	Tallies   map[Stance]float64 `json:"tallies,omitempty"`
	Ranking   []RankedOutcome    `json:"ranking,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
