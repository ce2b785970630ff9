// game/skill/book.go
package skill

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
)

var (
	ErrNoClass       = errors.New("no class chosen")
	ErrUnknownSkill  = errors.New("unknown skill")
	ErrLevelTooLow   = errors.New("level too low")
	ErrOnCooldown    = errors.New("skill on cooldown")
	ErrNotEnoughMana = errors.New("not enough mana")
)

// Slot is one of the four skill bindings every class has.
type Slot string

const (
	BasicAttack Slot = "basic-attack"
	Skill1      Slot = "skill-1"
	Skill2      Slot = "skill-2"
	Skill3      Slot = "skill-3"
)

var requiredLevel = map[Slot]int{
	BasicAttack: 1,
	Skill1:      5,
	Skill2:      10,
	Skill3:      20,
}

// RequiredLevel returns the level a slot opens at.
func (s Slot) RequiredLevel() (int, bool) {
	lvl, ok := requiredLevel[s]
	return lvl, ok
}

// Cast describes a skill that was successfully cast.
type Cast struct {
	Slot       Slot          `json:"slot"`
	SkillID    string        `json:"skillId"`
	ManaCost   float64       `json:"manaCost"`
	Cooldown   time.Duration `json:"cooldown"`
	Multiplier float64       `json:"multiplier"`
	ManaLeft   float64       `json:"manaLeft"`
}

// Book validates and applies skill casts.
type Book struct {
	tables    *policy.Tables
	cooldowns *cooldown.Registry
}

// NewBook creates a Book.
func NewBook(t *policy.Tables, cooldowns *cooldown.Registry) *Book {
	return &Book{tables: t, cooldowns: cooldowns}
}

// SetTables swaps the tables after a reload.
func (b *Book) SetTables(t *policy.Tables) { b.tables = t }

// Cast checks level, cooldown and mana in that order, then spends the mana
// and starts the cooldown. A refused cast changes nothing.
func (b *Book) Cast(rec *session.Record, slot Slot) (Cast, error) {
	if !rec.Role.Assigned() {
		return Cast{}, ErrNoClass
	}
	need, ok := slot.RequiredLevel()
	if !ok {
		return Cast{}, fmt.Errorf("%w: %s", ErrUnknownSkill, slot)
	}
	class, ok := b.tables.Class(string(rec.Role))
	if !ok {
		return Cast{}, fmt.Errorf("%w: class %s", ErrUnknownSkill, rec.Role)
	}
	def, ok := class.Skills[string(slot)]
	if !ok || def.SkillID == "" {
		return Cast{}, fmt.Errorf("%w: %s has no %s", ErrUnknownSkill, rec.Role, slot)
	}
	if rec.Level < need {
		return Cast{}, fmt.Errorf("%w: requires level %d", ErrLevelTooLow, need)
	}

	purpose := cooldown.PurposeSkillPrefix + def.SkillID
	if left := b.cooldowns.Remaining(rec.ID, purpose); left > 0 {
		return Cast{}, fmt.Errorf("%w: %.1fs left", ErrOnCooldown, left.Seconds())
	}
	if !rec.SpendMana(def.ManaCost) {
		return Cast{}, fmt.Errorf("%w: %.0f/%.0f", ErrNotEnoughMana, rec.CurrentMana, def.ManaCost)
	}

	cd := time.Duration(def.Cooldown * float64(time.Second))
	if cd > 0 {
		b.cooldowns.TrySet(rec.ID, purpose, cd)
	}
	mult := def.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return Cast{
		Slot:       slot,
		SkillID:    def.SkillID,
		ManaCost:   def.ManaCost,
		Cooldown:   cd,
		Multiplier: mult,
		ManaLeft:   rec.CurrentMana,
	}, nil
}
