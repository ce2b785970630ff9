// game/combat/tracker.go
package combat

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNegativeDamage is returned for amounts below zero.
var ErrNegativeDamage = errors.New("damage amount must be non-negative")

type contribution struct {
	attacker uuid.UUID
	total    float64
	// seq of the hit that brought total to its current value.
	reachedAt uint64
}

type ledger struct {
	entries []*contribution // first-hit order
	index   map[uuid.UUID]*contribution
}

// Tracker keeps one damage ledger per live target and decides who earned the
// kill. Owned by the primary context.
type Tracker struct {
	ledgers map[uuid.UUID]*ledger
	seq     uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{ledgers: make(map[uuid.UUID]*ledger)}
}

// RecordDamage credits amount to attacker on target's ledger.
func (t *Tracker) RecordDamage(target, attacker uuid.UUID, amount float64) error {
	if amount < 0 {
		return ErrNegativeDamage
	}
	if amount == 0 {
		return nil
	}
	l, ok := t.ledgers[target]
	if !ok {
		l = &ledger{index: make(map[uuid.UUID]*contribution)}
		t.ledgers[target] = l
	}
	t.seq++
	c, ok := l.index[attacker]
	if !ok {
		c = &contribution{attacker: attacker}
		l.index[attacker] = c
		l.entries = append(l.entries, c)
	}
	c.total += amount
	c.reachedAt = t.seq
	return nil
}

// ResolveRecipient returns the attacker with the highest total. When totals
// tie, the attacker who reached that total first wins.
func (t *Tracker) ResolveRecipient(target uuid.UUID) (uuid.UUID, bool) {
	l, ok := t.ledgers[target]
	if !ok || len(l.entries) == 0 {
		return uuid.Nil, false
	}
	best := l.entries[0]
	for _, c := range l.entries[1:] {
		if c.total > best.total || (c.total == best.total && c.reachedAt < best.reachedAt) {
			best = c
		}
	}
	return best.attacker, true
}

// Attackers lists everyone on target's ledger in first-hit order.
func (t *Tracker) Attackers(target uuid.UUID) []uuid.UUID {
	l, ok := t.ledgers[target]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, len(l.entries))
	for i, c := range l.entries {
		out[i] = c.attacker
	}
	return out
}

// Contribution returns attacker's accumulated damage on target.
func (t *Tracker) Contribution(target, attacker uuid.UUID) float64 {
	if l, ok := t.ledgers[target]; ok {
		if c, ok := l.index[attacker]; ok {
			return c.total
		}
	}
	return 0
}

// Clear drops target's ledger. Calling it again is a no-op.
func (t *Tracker) Clear(target uuid.UUID) {
	delete(t.ledgers, target)
}

// Sweep drops ledgers whose target no longer exists and returns how many
// were removed. It backs up Clear for targets that despawned without dying.
func (t *Tracker) Sweep(exists func(target uuid.UUID) bool) int {
	removed := 0
	for target := range t.ledgers {
		if !exists(target) {
			delete(t.ledgers, target)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked targets.
func (t *Tracker) Len() int { return len(t.ledgers) }
