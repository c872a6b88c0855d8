// Package pubsub provides the in-process per-session event channel the
// orchestration core publishes through. Delivery is at-least-once: a full
// subscriber buffer gets one delayed redelivery attempt, so consumers must
// deduplicate by event id. Events are observational; replaying one never
// mutates session state.
package pubsub

import (
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// DefaultBuffer is the subscriber channel buffer used when Subscribe is
// called with a non-positive size.
const DefaultBuffer = 64

// redeliveryGrace is how long a redelivery attempt waits for a slow
// subscriber before the event is dropped with a warning.
const redeliveryGrace = 10 * time.Millisecond

// Options configures a Bus.
type Options struct {
	// Logger receives drop warnings. Defaults to NoOp.
	Logger logging.Logger
}

// Bus is a session-keyed fan-out of core.Event values. Safe for concurrent
// publishers and subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	logger logging.Logger
}

var _ core.Publisher = (*Bus)(nil)

type subscriber struct {
	ch     chan core.Event
	closed bool
	mu     sync.Mutex
}

// send delivers non-blocking; on a full buffer it retries once after a short
// grace in a detached goroutine (at-least-once, possibly delayed or, for a
// stuck consumer, dropped with a warning).
func (s *subscriber) send(ev core.Event, logger logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		go func() {
			t := time.NewTimer(redeliveryGrace)
			defer t.Stop()
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return
			}
			select {
			case s.ch <- ev:
			case <-t.C:
				logger.Warn("event dropped for slow subscriber", "session_id", ev.SessionID, "kind", string(ev.Kind), "event_id", ev.ID)
			}
		}()
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// New creates an empty Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{subs: make(map[string][]*subscriber), logger: opts.Logger}
}

// Subscribe registers a consumer for one session's events. The returned
// cancel function is idempotent and closes the channel.
func (b *Bus) Subscribe(sessionID string, buffer int) (<-chan core.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &subscriber{ch: make(chan core.Event, buffer)}
	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], sub)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			list := b.subs[sessionID]
			for i, s := range list {
				if s == sub {
					b.subs[sessionID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			sub.close()
		})
	}
	return sub.ch, cancel
}

// Publish implements core.Publisher, fanning the event out to the session's
// subscribers.
func (b *Bus) Publish(ev core.Event) {
	b.mu.RLock()
	list := make([]*subscriber, len(b.subs[ev.SessionID]))
	copy(list, b.subs[ev.SessionID])
	b.mu.RUnlock()
	for _, sub := range list {
		sub.send(ev, b.logger)
	}
}

// CloseSession drops and closes all subscribers of a session.
func (b *Bus) CloseSession(sessionID string) {
	b.mu.Lock()
	list := b.subs[sessionID]
	delete(b.subs, sessionID)
	b.mu.Unlock()
	for _, sub := range list {
		sub.close()
	}
}
