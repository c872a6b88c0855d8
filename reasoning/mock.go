package reasoning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
)

// MockProvider is a scriptable in-memory Provider for tests and offline runs.
// Queued results are consumed in order; once exhausted the responder function
// (or a generic echo) takes over. Safe for concurrent use.
type MockProvider struct {
	mu        sync.Mutex
	info      Info
	queue     []mockResult
	responder func(req core.ReasoningRequest) (string, error)
	delay     time.Duration
	requests  []core.ReasoningRequest
}

type mockResult struct {
	text string
	err  error
}

// NewMockProvider creates a mock provider with the given logical name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{info: Info{Name: name, Model: name + "-mock"}}
}

// Enqueue schedules a canned successful response.
func (m *MockProvider) Enqueue(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{text: text})
	return m
}

// EnqueueError schedules a failing attempt.
func (m *MockProvider) EnqueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{err: err})
	return m
}

// SetResponder installs a fallback used when the queue is empty.
func (m *MockProvider) SetResponder(fn func(req core.ReasoningRequest) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetDelay makes every attempt take at least d, for exercising out-of-order
// completion and timeouts.
func (m *MockProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls reports the number of attempts observed.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all observed requests in order.
func (m *MockProvider) Requests() []core.ReasoningRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.ReasoningRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, req core.ReasoningRequest) (core.ReasoningResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	delay := m.delay
	var next *mockResult
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		next = &r
	}
	responder := m.responder
	info := m.info
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return core.ReasoningResponse{}, ctx.Err()
		}
	}

	if next != nil {
		if next.err != nil {
			return core.ReasoningResponse{}, next.err
		}
		return core.ReasoningResponse{Text: next.text, Model: info.Model}, nil
	}
	if responder != nil {
		text, err := responder(req)
		if err != nil {
			return core.ReasoningResponse{}, err
		}
		return core.ReasoningResponse{Text: text, Model: info.Model}, nil
	}
	return core.ReasoningResponse{
		Text:  fmt.Sprintf("STANCE: neutral\nMock response from %s", info.Name),
		Model: info.Model,
	}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
