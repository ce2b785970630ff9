// game/progression/classes.go
package progression

import (
	"errors"
	"fmt"

	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
)

var (
	ErrUnknownClass   = errors.New("unknown class")
	ErrAlreadyClassed = errors.New("class already chosen")
)

// Levels at which a new skill slot opens, mapped to its player-facing label.
var unlocks = map[int]string{
	5:  "Skill 1 (right click)",
	10: "Skill 2 (shift + left click)",
	20: "Skill 3 (shift + right click)",
}

// ClassBook applies class definitions to session records.
type ClassBook struct {
	tables *policy.Tables
}

// NewClassBook binds a ClassBook to a policy table set.
func NewClassBook(t *policy.Tables) *ClassBook {
	return &ClassBook{tables: t}
}

// SetTables swaps the tables after a reload.
func (b *ClassBook) SetTables(t *policy.Tables) { b.tables = t }

// Select assigns classID to a player who has none yet, resetting them to
// level 1 with that class's base stats.
func (b *ClassBook) Select(rec *session.Record, classID string) (policy.Class, error) {
	if rec.Role.Assigned() {
		return policy.Class{}, ErrAlreadyClassed
	}
	class, ok := b.tables.Class(classID)
	if !ok {
		return policy.Class{}, fmt.Errorf("%w: %s", ErrUnknownClass, classID)
	}
	rec.Role = session.Role(classID)
	rec.Level = 1
	rec.CurrentExp = 0
	rec.RequiredExp = session.RequiredExp(1)
	applyStats(rec, class)
	rec.CurrentMana = rec.MaxManaValue()
	return class, nil
}

// ApplyLevelStats recomputes base stats for the record's class and level.
// It reports false when the class is not in the tables.
func (b *ClassBook) ApplyLevelStats(rec *session.Record) bool {
	class, ok := b.tables.Class(string(rec.Role))
	if !ok {
		return false
	}
	applyStats(rec, class)
	if rec.CurrentMana > rec.MaxManaValue() {
		rec.CurrentMana = rec.MaxManaValue()
	}
	return true
}

// DisplayName returns the class's display name, or the id itself.
func (b *ClassBook) DisplayName(classID string) string {
	if c, ok := b.tables.Class(classID); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return classID
}

// LevelUpMessages returns the lines a player sees on reaching level.
func LevelUpMessages(level int) []string {
	var lines []string
	if label, ok := unlocks[level]; ok {
		lines = append(lines, fmt.Sprintf("[Skill] %s unlocked!", label))
	}
	return append(lines, fmt.Sprintf("[Level Up!] Congratulations, you reached level %d!", level))
}

func applyStats(rec *session.Record, c policy.Class) {
	n := float64(rec.Level - 1)
	rec.Attack.Base = c.BaseStats.Attack + c.PerLevel.Attack*n
	rec.Defense.Base = c.BaseStats.Defense + c.PerLevel.Defense*n
	rec.MaxMana.Base = c.BaseStats.MaxMana + c.PerLevel.MaxMana*n
	rec.CritChance.Base = c.BaseStats.CritChance + c.PerLevel.CritChance*n
	rec.CritDamage.Base = c.BaseStats.CritDamage + c.PerLevel.CritDamage*n
}
