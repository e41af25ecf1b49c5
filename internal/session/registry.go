package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Forgetter drops per-session bookkeeping such as token budgets.
type Forgetter interface {
	Forget(owner string)
}

// Registry owns the live sessions.
type Registry struct {
	deps   Deps
	forget []Forgetter
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithForgetter releases per-session state held elsewhere when a session ends.
// It may be given more than once.
func WithForgetter(f Forgetter) RegistryOption {
	return func(r *Registry) {
		r.forget = append(r.forget, f)
	}
}

// WithClock sets the clock used for idle tracking.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry whose controllers share deps.
func NewRegistry(deps Deps, opts ...RegistryOption) *Registry {
	r := &Registry{
		deps:     deps.withDefaults(),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a new session.
func (r *Registry) Create() *Controller {
	id := uuid.NewString()
	ctrl := NewController(id, r.deps)

	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	slog.Info("session created", "session_id", id)
	return ctrl
}

// Get returns a live session and marks it as seen.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Touch marks a live session as seen. It reports whether the session exists.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if ok {
		e.lastSeen = r.now()
	}
	return ok
}

// Delete ends a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.release(e.ctrl)
	slog.Info("session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep ends sessions not seen for longer than idle and returns how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Controller
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, ctrl := range stale {
		r.release(ctrl)
	}
	if len(stale) > 0 {
		slog.Info("idle sessions swept", "count", len(stale))
	}
	return len(stale)
}

// CloseAll ends every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		r.release(e.ctrl)
	}
}

func (r *Registry) release(ctrl *Controller) {
	ctrl.Close()
	for _, f := range r.forget {
		f.Forget(ctrl.ID())
	}
}
