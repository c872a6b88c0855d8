package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

func fastGateway(optFns ...func(o *Options)) *Gateway {
	fns := append([]func(o *Options){func(o *Options) {
		o.CallTimeout = 200 * time.Millisecond
		o.MaxRetries = 2
		o.BackoffBase = time.Millisecond
	}}, optFns...)
	return New(fns...)
}

func TestGateway_UnknownProvider(t *testing.T) {
	g := fastGateway()

	_, err := g.Generate(context.Background(), "nope", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, core.FailureProviderUnavailable, perr.Kind)
	assert.Equal(t, "nope", perr.Provider)
}

func TestGateway_Providers_Sorted(t *testing.T) {
	g := fastGateway()
	g.Register("openai", NewMockProvider("openai"))
	g.Register("anthropic", NewMockProvider("anthropic"))
	g.Register("mock", NewMockProvider("mock"))

	assert.Equal(t, []string{"anthropic", "mock", "openai"}, g.Providers())
}

func TestGateway_SuccessFirstAttempt(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock").Enqueue("STANCE: agree\nall good")
	g.Register("mock", p)

	resp, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "mock", resp.Provider)
	assert.Equal(t, 0, resp.Retries)
	assert.Contains(t, resp.Text, "all good")
	assert.Equal(t, 1, p.Calls())
}

func TestGateway_RetriesTimeoutThenSucceeds(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock").
		EnqueueError(&core.ProviderError{Kind: core.FailureTimeout, Err: errors.New("deadline")}).
		Enqueue("STANCE: neutral\nrecovered")
	g.Register("mock", p)

	resp, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Retries)
	assert.Equal(t, 2, p.Calls())
}

func TestGateway_RetriesRateLimited(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock").
		EnqueueError(&core.ProviderError{Kind: core.FailureRateLimited, Err: errors.New("429")}).
		EnqueueError(&core.ProviderError{Kind: core.FailureRateLimited, Err: errors.New("429")}).
		Enqueue("STANCE: agree\nthird time lucky")
	g.Register("mock", p)

	resp, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Retries)
	assert.Equal(t, 3, p.Calls())
}

func TestGateway_RetriesExhausted(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock")
	p.SetResponder(func(core.ReasoningRequest) (string, error) {
		return "", &core.ProviderError{Kind: core.FailureTimeout, Err: errors.New("deadline")}
	})
	g.Register("mock", p)

	_, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, core.FailureTimeout, perr.Kind)
	// first attempt plus MaxRetries
	assert.Equal(t, 3, p.Calls())
}

func TestGateway_NoRetryOnInvalidResponse(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock").
		EnqueueError(&core.ProviderError{Kind: core.FailureInvalidResponse, Err: errors.New("garbled")}).
		Enqueue("never reached")
	g.Register("mock", p)

	_, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, core.FailureInvalidResponse, perr.Kind)
	assert.Equal(t, 1, p.Calls(), "invalid responses must not be retried")
}

func TestGateway_EmptyTextIsInvalidResponse(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock").Enqueue("   \n  ")
	g.Register("mock", p)

	_, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, core.FailureInvalidResponse, perr.Kind)
	assert.Equal(t, 1, p.Calls())
}

func TestGateway_CallTimeoutClassifiedAsTimeout(t *testing.T) {
	g := New(func(o *Options) {
		o.CallTimeout = 20 * time.Millisecond
		o.MaxRetries = 0
		o.BackoffBase = time.Millisecond
	})
	p := NewMockProvider("mock")
	p.SetDelay(500 * time.Millisecond)
	g.Register("mock", p)

	_, err := g.Generate(context.Background(), "mock", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	var perr *core.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, core.FailureTimeout, perr.Kind)
}

func TestGateway_CancelledContextStopsRetries(t *testing.T) {
	g := fastGateway()
	p := NewMockProvider("mock")
	p.SetResponder(func(core.ReasoningRequest) (string, error) {
		return "", &core.ProviderError{Kind: core.FailureRateLimited, Err: errors.New("429")}
	})
	g.Register("mock", p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "mock", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)
	assert.LessOrEqual(t, p.Calls(), 1)
}

// callMetricsRecorder captures LogReasoningCall upgrades from the gateway.
type callMetricsRecorder struct {
	logging.NoOpLogger
	mu        sync.Mutex
	providers []string
	successes []bool
}

func (r *callMetricsRecorder) LogReasoningCall(provider string, _ int, _ time.Duration, success bool, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, provider)
	r.successes = append(r.successes, success)
}

func TestGateway_CallMetricsLoggerUpgrade(t *testing.T) {
	rec := &callMetricsRecorder{}
	g := fastGateway(func(o *Options) { o.Logger = rec })

	ok := NewMockProvider("mock").Enqueue("STANCE: agree\nfine.")
	g.Register("ok", ok)

	bad := NewMockProvider("mock")
	bad.SetResponder(func(core.ReasoningRequest) (string, error) {
		return "", &core.ProviderError{Kind: core.FailureInvalidResponse, Err: errors.New("garbled")}
	})
	g.Register("bad", bad)

	_, err := g.Generate(context.Background(), "ok", core.ReasoningRequest{Prompt: "p"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "bad", core.ReasoningRequest{Prompt: "p"})
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	// one final-outcome entry per call, success then failure
	require.Equal(t, []string{"ok", "bad"}, rec.providers)
	assert.Equal(t, []bool{true, false}, rec.successes)
}

func TestClassify_PassesThroughAndWraps(t *testing.T) {
	pre := &core.ProviderError{Kind: core.FailureRateLimited, Err: errors.New("429")}
	got := classify("mock", pre)
	assert.Equal(t, core.FailureRateLimited, got.Kind)
	assert.Equal(t, "mock", got.Provider)

	got = classify("mock", context.DeadlineExceeded)
	assert.Equal(t, core.FailureTimeout, got.Kind)

	got = classify("mock", fmt.Errorf("connection refused"))
	assert.Equal(t, core.FailureProviderUnavailable, got.Kind)
	assert.False(t, got.Retryable())
}

func TestMockProvider_ResponderAndRequests(t *testing.T) {
	p := NewMockProvider("mock")
	p.SetResponder(func(req core.ReasoningRequest) (string, error) {
		return "echo: " + req.Prompt, nil
	})

	resp, err := p.Generate(context.Background(), core.ReasoningRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Text)
	require.Len(t, p.Requests(), 1)
	assert.Equal(t, "hello", p.Requests()[0].Prompt)
}
