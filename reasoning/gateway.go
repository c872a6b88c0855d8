package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// Info contains metadata about a provider implementation.
type Info struct {
	Name  string `json:"name"`  // logical provider family, e.g. "anthropic"
	Model string `json:"model"` // concrete model identifier
}

// Provider is the minimal interface a reasoning backend must implement. A
// provider performs exactly one generation attempt; timeout and retry policy
// belong to the Gateway.
type Provider interface {
	Generate(ctx context.Context, req core.ReasoningRequest) (core.ReasoningResponse, error)
	Info() Info
}

// Options configures the Gateway.
type Options struct {
	// CallTimeout bounds a single provider attempt.
	CallTimeout time.Duration
	// MaxRetries is the number of additional attempts after the first, only
	// taken for timeout and rate-limit failures.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// Logger receives per-attempt diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Gateway routes generation requests to registered providers by logical name,
// enforcing per-call timeout and bounded exponential-backoff retry. Safe for
// concurrent use across sessions.
type Gateway struct {
	mu        sync.RWMutex
	providers map[string]Provider
	opts      Options
}

var _ core.ReasoningGateway = (*Gateway)(nil)

// New creates a Gateway with default policy: 30s call timeout, 2 retries,
// 500ms backoff base.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		CallTimeout: 30 * time.Second,
		MaxRetries:  2,
		BackoffBase: 500 * time.Millisecond,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{providers: make(map[string]Provider), opts: opts}
}

// Register adds a provider under a logical id, replacing any previous one.
func (g *Gateway) Register(id string, p Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[id] = p
}

// Providers returns the registered logical ids in sorted order.
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.providers))
	for id := range g.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Generate invokes the named provider. Timeout and rate-limit failures are
// retried with exponential backoff up to MaxRetries; invalid responses and
// unavailable providers fail immediately. The returned response carries total
// latency across attempts and the retry count that produced it.
func (g *Gateway) Generate(ctx context.Context, providerID string, req core.ReasoningRequest) (core.ReasoningResponse, error) {
	g.mu.RLock()
	p, ok := g.providers[providerID]
	g.mu.RUnlock()
	if !ok {
		return core.ReasoningResponse{}, &core.ProviderError{
			Provider: providerID,
			Kind:     core.FailureProviderUnavailable,
			Err:      fmt.Errorf("provider not registered"),
		}
	}

	start := time.Now()
	var lastErr *core.ProviderError
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, g.opts.BackoffBase<<(attempt-1)); err != nil {
				return core.ReasoningResponse{}, &core.ProviderError{Provider: providerID, Kind: core.FailureTimeout, Err: err}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		resp, err := p.Generate(callCtx, req)
		cancel()

		if err == nil {
			if strings.TrimSpace(resp.Text) == "" {
				perr := &core.ProviderError{
					Provider: providerID,
					Kind:     core.FailureInvalidResponse,
					Err:      fmt.Errorf("empty response text"),
				}
				g.logCall(providerID, 0, start, perr)
				return core.ReasoningResponse{}, perr
			}
			resp.Provider = providerID
			if resp.Model == "" {
				resp.Model = p.Info().Model
			}
			resp.Retries = attempt
			resp.Latency = time.Since(start)
			g.logCall(providerID, resp.TokensUsed, start, nil)
			return resp, nil
		}

		perr := classify(providerID, err)
		g.opts.Logger.Warn("reasoning attempt failed",
			"provider", providerID, "attempt", attempt, "kind", string(perr.Kind), "error", perr.Error())
		if !perr.Retryable() || ctx.Err() != nil {
			g.logCall(providerID, 0, start, perr)
			return core.ReasoningResponse{}, perr
		}
		lastErr = perr
	}
	g.logCall(providerID, 0, start, lastErr)
	return core.ReasoningResponse{}, lastErr
}

// logCall reports final call metrics when the configured logger supports
// them. Intermediate retry attempts stay on the plain Warn path.
func (g *Gateway) logCall(providerID string, tokens int, start time.Time, err error) {
	if cl, ok := g.opts.Logger.(logging.CallMetricsLogger); ok {
		cl.LogReasoningCall(providerID, tokens, time.Since(start), err == nil, err)
	}
}

// classify maps an attempt error onto the failure taxonomy. Providers may
// pre-classify by returning *core.ProviderError themselves.
func classify(providerID string, err error) *core.ProviderError {
	var perr *core.ProviderError
	if errors.As(err, &perr) {
		if perr.Provider == "" {
			perr.Provider = providerID
		}
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &core.ProviderError{Provider: providerID, Kind: core.FailureTimeout, Err: err}
	}
	return &core.ProviderError{Provider: providerID, Kind: core.FailureProviderUnavailable, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
