package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
)

// FlakyGateway wraps a core.MemoryGateway and fails a scripted number of
// upcoming calls with core.ErrStorageUnavailable. It exists to exercise the
// scheduler's degraded-context and abort-threshold behavior without a real
// failing store.
type FlakyGateway struct {
	inner core.MemoryGateway

	mu        sync.Mutex
	remaining int
	calls     int
}

var _ core.MemoryGateway = (*FlakyGateway)(nil)

// NewFlakyGateway wraps inner; until FailNext is called it is transparent.
func NewFlakyGateway(inner core.MemoryGateway) *FlakyGateway {
	return &FlakyGateway{inner: inner}
}

// FailNext makes the next n gateway calls return core.ErrStorageUnavailable.
func (f *FlakyGateway) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
}

// Calls reports the total number of gateway calls observed.
func (f *FlakyGateway) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FlakyGateway) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.remaining > 0 {
		f.remaining--
		return true
	}
	return false
}

// GetActive implements core.MemoryGateway.
func (f *FlakyGateway) GetActive(ctx context.Context, sessionID, key string) (any, bool, error) {
	if f.fail() {
		return nil, false, core.ErrStorageUnavailable
	}
	return f.inner.GetActive(ctx, sessionID, key)
}

// SetActive implements core.MemoryGateway.
func (f *FlakyGateway) SetActive(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	if f.fail() {
		return core.ErrStorageUnavailable
	}
	return f.inner.SetActive(ctx, sessionID, key, value, ttl)
}

// AppendHistory implements core.MemoryGateway.
func (f *FlakyGateway) AppendHistory(ctx context.Context, sessionID string, rec core.HistoryRecord) error {
	if f.fail() {
		return core.ErrStorageUnavailable
	}
	return f.inner.AppendHistory(ctx, sessionID, rec)
}

// QueryHistory implements core.MemoryGateway.
func (f *FlakyGateway) QueryHistory(ctx context.Context, sessionID, query string, topK int) ([]core.HistoryRecord, error) {
	if f.fail() {
		return nil, core.ErrStorageUnavailable
	}
	return f.inner.QueryHistory(ctx, sessionID, query, topK)
}

// HistorySince implements core.MemoryGateway.
func (f *FlakyGateway) HistorySince(ctx context.Context, sessionID string, sinceRound int) ([]core.HistoryRecord, error) {
	if f.fail() {
		return nil, core.ErrStorageUnavailable
	}
	return f.inner.HistorySince(ctx, sessionID, sinceRound)
}

// PurgeActive implements core.MemoryGateway.
func (f *FlakyGateway) PurgeActive(ctx context.Context, sessionID string) error {
	if f.fail() {
		return core.ErrStorageUnavailable
	}
	return f.inner.PurgeActive(ctx, sessionID)
}
