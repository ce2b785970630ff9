// game/session/record.go
package session

import (
	"math"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

// Progression curve.
const (
	ExpBase       = 100.0
	ExpMultiplier = 1.15
	MaxLevel      = 100

	DefaultMaxMana = 100.0
)

// RequiredExp is the experience needed to advance from level to level+1:
// floor(ExpBase * ExpMultiplier^(level-1)). Levels at the cap never advance.
func RequiredExp(level int) float64 {
	if level >= MaxLevel {
		return math.MaxFloat64
	}
	if level < 1 {
		level = 1
	}
	// 1.15 is not exact in binary; the epsilon keeps 100*1.15 at 115.
	return math.Floor(ExpBase*math.Pow(ExpMultiplier, float64(level-1)) + 1e-9)
}

// Role is a class identifier. The zero value means no class was chosen.
type Role string

// Unassigned is the role of a player who has not picked a class yet.
const Unassigned Role = ""

func (r Role) Assigned() bool { return r != Unassigned }

// Stat splits a derived stat into its persisted base and a transient bonus
// (equipment, buffs).
type Stat struct {
	Base  float64
	Bonus float64
}

func (s Stat) Effective() float64 { return s.Base + s.Bonus }

// Record is the live progression state of one connected player. It is owned
// by the primary context; workers only ever see Progression snapshots.
type Record struct {
	ID          uuid.UUID
	Role        Role
	Level       int
	CurrentExp  float64
	RequiredExp float64

	Attack     Stat
	Defense    Stat
	MaxMana    Stat
	CritChance Stat
	CritDamage Stat

	CurrentMana float64

	// Fresh stays true until the record has been written once.
	Fresh bool
	// Degraded records came from a failed load and are never written back.
	Degraded bool

	Extensions Extensions

	LoadedAt time.Time

	// stored is the last state known to be in the store, nil if none.
	stored *models.Progression
}

// Unsaved reports whether the record differs from what was last stored.
func (r *Record) Unsaved() bool {
	return r.stored == nil || !r.stored.SameState(r.Progression())
}

// NewRecord returns the default state for a player with no stored data.
func NewRecord(id uuid.UUID) *Record {
	return &Record{
		ID:          id,
		Level:       1,
		RequiredExp: RequiredExp(1),
		MaxMana:     Stat{Base: DefaultMaxMana},
		CurrentMana: DefaultMaxMana,
		Fresh:       true,
		LoadedAt:    time.Now(),
	}
}

// AddExperience adds amount and rolls over as many levels as it pays for.
// It returns the number of levels gained. Players without a class and
// players at the cap gain nothing.
func (r *Record) AddExperience(amount float64) int {
	if !r.Role.Assigned() || amount <= 0 || r.Level >= MaxLevel {
		return 0
	}
	r.CurrentExp += amount
	gained := 0
	for r.Level < MaxLevel && r.CurrentExp >= r.RequiredExp {
		r.CurrentExp -= r.RequiredExp
		r.Level++
		r.RequiredExp = RequiredExp(r.Level)
		gained++
	}
	return gained
}

// MaxManaValue is the effective mana ceiling.
func (r *Record) MaxManaValue() float64 { return r.MaxMana.Effective() }

// RegenMana moves current mana toward the ceiling by rate.
func (r *Record) RegenMana(rate float64) {
	if !r.Role.Assigned() || rate <= 0 {
		return
	}
	ceiling := r.MaxManaValue()
	if r.CurrentMana >= ceiling {
		return
	}
	r.CurrentMana = math.Min(r.CurrentMana+rate, ceiling)
}

// SpendMana deducts cost if the pool covers it.
func (r *Record) SpendMana(cost float64) bool {
	if cost < 0 || r.CurrentMana < cost {
		return false
	}
	r.CurrentMana -= cost
	return true
}

// Progression snapshots the persisted part of the record.
func (r *Record) Progression() *models.Progression {
	return &models.Progression{
		UUID:        r.ID.String(),
		Class:       string(r.Role),
		Level:       r.Level,
		CurrentExp:  r.CurrentExp,
		RequiredExp: r.RequiredExp,
		BaseAttack:  r.Attack.Base,
		BaseDefense: r.Defense.Base,
		BaseMaxMana: r.MaxMana.Base,
		BaseCritPct: r.CritChance.Base,
		BaseCritDmg: r.CritDamage.Base,
		CurrentMana: r.CurrentMana,
		Extensions:  r.Extensions.Map(),
	}
}

// recordFromProgression rebuilds a record from storage, clamping values a
// hand-edited file could have broken.
func recordFromProgression(id uuid.UUID, p *models.Progression) *Record {
	level := p.Level
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	rec := &Record{
		ID:          id,
		Role:        Role(p.Class),
		Level:       level,
		CurrentExp:  math.Max(p.CurrentExp, 0),
		RequiredExp: RequiredExp(level),
		Attack:      Stat{Base: p.BaseAttack},
		Defense:     Stat{Base: p.BaseDefense},
		MaxMana:     Stat{Base: p.BaseMaxMana},
		CritChance:  Stat{Base: p.BaseCritPct},
		CritDamage:  Stat{Base: p.BaseCritDmg},
		CurrentMana: p.CurrentMana,
		LoadedAt:    time.Now(),
	}
	if rec.MaxMana.Base <= 0 {
		rec.MaxMana.Base = DefaultMaxMana
	}
	if rec.CurrentMana > rec.MaxMana.Base {
		rec.CurrentMana = rec.MaxMana.Base
	}
	rec.Extensions = extensionsFromMap(id, p.Extensions)
	rec.stored = p.Clone()
	return rec
}
