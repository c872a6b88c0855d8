package core

import (
	"context"
	"time"
)

// Constraints bounds a single reasoning call. Zero values fall back to the
// provider adapter's defaults.
type Constraints struct {
	MaxTokens   int64   `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ReasoningRequest is the normalized input to a reasoning provider: role
// context (who the agent is) and conversation context (what has been said),
// both rendered upstream into plain text.
type ReasoningRequest struct {
	Instructions string      `json:"instructions"` // role/system context
	Prompt       string      `json:"prompt"`       // conversation context
	Constraints  Constraints `json:"constraints,omitempty"`
}

// ReasoningResponse is the structured result of a successful call.
type ReasoningResponse struct {
	Text       string        `json:"text"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitempty"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Latency    time.Duration `json:"latency"`
	Retries    int           `json:"retries,omitempty"`
}

// ReasoningGateway invokes a reasoning provider by logical name with bounded
// timeout and retry. Failures are typed *ProviderError values; retries are
// attempted only for timeout and rate-limit kinds. Implementations must be
// safe for concurrent use across sessions.
type ReasoningGateway interface {
	Generate(ctx context.Context, providerID string, req ReasoningRequest) (ReasoningResponse, error)

	// Providers lists the registered logical provider ids in stable order.
	Providers() []string
}
