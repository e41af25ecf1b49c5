// Package stream fans session events out to the learner's connected devices.
package stream

import (
	"log/slog"
	"sync"

	"github.com/p-n-ai/little-star/internal/session"
)

const defaultBuffer = 64

// Hub routes events to the subscribers of each session.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch     chan session.Event
	lagged chan struct{}
	closed bool
}

// Subscription is one device's view of a session's events.
type Subscription struct {
	sub    *subscriber
	cancel func()
}

// Events is closed when the session is forgotten or Cancel is called.
func (s *Subscription) Events() <-chan session.Event { return s.sub.ch }

// Lagged receives a value after events were dropped because the subscriber fell behind.
func (s *Subscription) Lagged() <-chan struct{} { return s.sub.lagged }

// Cancel unsubscribes. It is safe to call more than once.
func (s *Subscription) Cancel() { s.cancel() }

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets how many events a slow subscriber may fall behind before events are dropped.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		buffer: defaultBuffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish delivers ev to every subscriber of ev.Session without blocking.
func (h *Hub) Publish(ev session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.Session] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "session_id", ev.Session, "type", ev.Type)
			select {
			case sub.lagged <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribe registers a subscriber for a session.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &subscriber{
		ch:     make(chan session.Event, h.buffer),
		lagged: make(chan struct{}, 1),
	}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		sub.close()
	}
	return &Subscription{sub: sub, cancel: cancel}
}

func (s *subscriber) close() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribers returns the number of live subscribers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Forget disconnects every subscriber of a session that has ended.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		sub.close()
	}
	delete(h.subs, sessionID)
}
