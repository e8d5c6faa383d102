// Package session owns the live conversations held in memory. Each session
// has its own turn lock; the registry map has a separate lock that is never
// held across a turn or an external call.
package session

import (
	"sync"
	"time"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/metrics"
)

// DefaultTTL is how long an idle session stays in memory.
const DefaultTTL = 24 * time.Hour

// Entry is a live session. Lock it for the duration of a turn.
type Entry struct {
	turn sync.Mutex

	id       string
	tenantID string
	role     domain.UserRole

	// guarded by the registry lock
	lastActivity time.Time

	// guarded by turn
	session *domain.Session

	done    chan struct{}
	endOnce sync.Once
}

// Lock acquires the turn lock.
func (e *Entry) Lock() { e.turn.Lock() }

// Unlock releases the turn lock.
func (e *Entry) Unlock() { e.turn.Unlock() }

// Session returns the conversation. Callers must hold the turn lock.
func (e *Entry) Session() *domain.Session { return e.session }

// Done is closed once the session is ended.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Ended reports whether End was called.
func (e *Entry) Ended() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// End marks the session ended so an in-flight turn stops at its next step.
// It is safe to call more than once.
func (e *Entry) End() {
	e.endOnce.Do(func() { close(e.done) })
}

// Registry maps session ids to live entries.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates a registry evicting sessions idle longer than ttl.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Acquire returns the live entry for id, creating it when needed. It returns
// domain.ErrSessionScope when id is live under another tenant or role. An
// ended entry is replaced by a fresh one. created reports whether a new
// entry was made.
func (r *Registry) Acquire(id, tenantID string, role domain.UserRole) (e *Entry, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.entries[id]; ok && !existing.Ended() {
		if existing.tenantID != tenantID || existing.role != role {
			return nil, false, domain.ErrSessionScope
		}
		existing.lastActivity = now
		return existing, false, nil
	}

	e = &Entry{
		id:           id,
		tenantID:     tenantID,
		role:         role,
		lastActivity: now,
		session: &domain.Session{
			SessionID:    id,
			TenantID:     tenantID,
			Role:         role,
			CreatedAt:    now,
			LastActivity: now,
		},
		done: make(chan struct{}),
	}
	r.entries[id] = e
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	return e, true, nil
}

// Get returns the live entry for id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Touch records activity on e.
func (r *Registry) Touch(e *Entry) {
	r.mu.Lock()
	e.lastActivity = r.now()
	r.mu.Unlock()
}

// Remove drops e from the registry if it is still the entry for its id.
func (r *Registry) Remove(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.id]; ok && cur == e {
		delete(r.entries, e.id)
		metrics.ActiveSessions.Set(float64(len(r.entries)))
	}
}

// Idle returns the entries whose last activity is older than the TTL.
func (r *Registry) Idle() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	var out []*Entry
	for _, e := range r.entries {
		if e.lastActivity.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Expired reports whether e has been idle longer than the TTL.
func (r *Registry) Expired(e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.lastActivity.Before(r.now().Add(-r.ttl))
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// All returns every live entry.
func (r *Registry) All() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
