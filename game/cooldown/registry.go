// game/cooldown/registry.go
package cooldown

import (
	"time"

	"github.com/google/uuid"
)

// Well-known purpose keys.
const (
	PurposeDungeon     = "dungeon"
	PurposeSkillPrefix = "skill:"
)

type key struct {
	subject uuid.UUID
	purpose string
}

// Registry holds expiring locks keyed by (subject, purpose). Expiry is
// evaluated lazily on read; Sweep only bounds memory.
// Registry is owned by the primary context and is not safe for concurrent use.
type Registry struct {
	entries map[key]time.Time
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[key]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TrySet starts (or restarts) a cooldown. It always succeeds.
func (r *Registry) TrySet(subject uuid.UUID, purpose string, d time.Duration) bool {
	r.entries[key{subject, purpose}] = r.now().Add(d)
	return true
}

// Remaining returns how long the cooldown still runs, or zero.
func (r *Registry) Remaining(subject uuid.UUID, purpose string) time.Duration {
	k := key{subject, purpose}
	expiry, ok := r.entries[k]
	if !ok {
		return 0
	}
	left := expiry.Sub(r.now())
	if left <= 0 {
		delete(r.entries, k)
		return 0
	}
	return left
}

// Active reports whether a cooldown is running.
func (r *Registry) Active(subject uuid.UUID, purpose string) bool {
	return r.Remaining(subject, purpose) > 0
}

// Clear drops a cooldown.
func (r *Registry) Clear(subject uuid.UUID, purpose string) {
	delete(r.entries, key{subject, purpose})
}

// Sweep removes expired entries and returns how many were dropped.
func (r *Registry) Sweep() int {
	now := r.now()
	removed := 0
	for k, expiry := range r.entries {
		if !expiry.After(now) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (r *Registry) Len() int {
	return len(r.entries)
}
