// game/combat/world.go
package combat

import (
	"time"

	"github.com/google/uuid"
)

// World is what this node knows about which non-player entities the host
// still has loaded. Hits mark a target present; death and despawn reports
// remove it. A target not hit for idleTTL counts as gone, so a host that
// never reports a despawn cannot pin a ledger forever. Owned by the primary
// context.
type World struct {
	now     func() time.Time
	idleTTL time.Duration
	seen    map[uuid.UUID]time.Time
}

// NewWorld returns an empty World. A nil now uses time.Now; idleTTL <= 0
// disables idle expiry.
func NewWorld(idleTTL time.Duration, now func() time.Time) *World {
	if now == nil {
		now = time.Now
	}
	return &World{now: now, idleTTL: idleTTL, seen: make(map[uuid.UUID]time.Time)}
}

// Seen marks target as loaded as of now.
func (w *World) Seen(target uuid.UUID) { w.seen[target] = w.now() }

// Gone forgets target.
func (w *World) Gone(target uuid.UUID) { delete(w.seen, target) }

// Exists reports whether target is loaded and was seen within idleTTL.
func (w *World) Exists(target uuid.UUID) bool {
	at, ok := w.seen[target]
	if !ok {
		return false
	}
	return w.idleTTL <= 0 || w.now().Sub(at) < w.idleTTL
}

// Prune forgets idle targets and returns how many were dropped.
func (w *World) Prune() int {
	dropped := 0
	for target := range w.seen {
		if !w.Exists(target) {
			delete(w.seen, target)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of targets considered loaded.
func (w *World) Len() int { return len(w.seen) }
