// shared/models/progression.go
package models

import "time"

// Progression is the persisted form of a player's RPG progression. It is the
// only shape the storage backends see; bonus stats are never stored.
type Progression struct {
	UUID        string            `bson:"_id" json:"uuid" yaml:"uuid"`
	Class       string            `bson:"class,omitempty" json:"class,omitempty" yaml:"class,omitempty"`
	Level       int               `bson:"level" json:"level" yaml:"level"`
	CurrentExp  float64           `bson:"current_exp" json:"currentExp" yaml:"current_exp"`
	RequiredExp float64           `bson:"required_exp" json:"requiredExp" yaml:"required_exp"`
	BaseAttack  float64           `bson:"base_attack" json:"baseAttack" yaml:"base_attack"`
	BaseDefense float64           `bson:"base_defense" json:"baseDefense" yaml:"base_defense"`
	BaseMaxMana float64           `bson:"base_max_mana" json:"baseMaxMana" yaml:"base_max_mana"`
	BaseCritPct float64           `bson:"base_crit_chance" json:"baseCritChance" yaml:"base_crit_chance"`
	BaseCritDmg float64           `bson:"base_crit_damage" json:"baseCritDamage" yaml:"base_crit_damage"`
	CurrentMana float64           `bson:"current_mana" json:"currentMana" yaml:"current_mana"`
	Extensions  map[string]string `bson:"extensions,omitempty" json:"extensions,omitempty" yaml:"extensions,omitempty"`
	UpdatedAt   time.Time         `bson:"updated_at" json:"updatedAt" yaml:"updated_at"`
}

// Clone returns a deep copy, so a snapshot handed to a worker never aliases
// the live record's extension map.
func (p *Progression) Clone() *Progression {
	if p == nil {
		return nil
	}
	c := *p
	if p.Extensions != nil {
		c.Extensions = make(map[string]string, len(p.Extensions))
		for k, v := range p.Extensions {
			c.Extensions[k] = v
		}
	}
	return &c
}

// SameState reports whether p and o hold the same persisted values.
// UpdatedAt is ignored since backends stamp it on write.
func (p *Progression) SameState(o *Progression) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.UUID != o.UUID || p.Class != o.Class || p.Level != o.Level ||
		p.CurrentExp != o.CurrentExp || p.RequiredExp != o.RequiredExp ||
		p.BaseAttack != o.BaseAttack || p.BaseDefense != o.BaseDefense ||
		p.BaseMaxMana != o.BaseMaxMana || p.BaseCritPct != o.BaseCritPct ||
		p.BaseCritDmg != o.BaseCritDmg || p.CurrentMana != o.CurrentMana {
		return false
	}
	if len(p.Extensions) != len(o.Extensions) {
		return false
	}
	for k, v := range p.Extensions {
		if w, ok := o.Extensions[k]; !ok || w != v {
			return false
		}
	}
	return true
}
