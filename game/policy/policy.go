// game/policy/policy.go
package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when a policy file parses but is unusable.
var ErrInvalidPolicy = errors.New("invalid policy")

// Stats is one row of class stats, either the level-1 base or the per-level gain.
type Stats struct {
	Attack     float64 `yaml:"attack"`
	Defense    float64 `yaml:"defense"`
	MaxMana    float64 `yaml:"max-mana"`
	CritChance float64 `yaml:"crit-chance"`
	CritDamage float64 `yaml:"crit-damage"`
}

// Skill configures one skill slot of a class.
type Skill struct {
	SkillID    string  `yaml:"skill-id"`
	ManaCost   float64 `yaml:"mana-cost"`
	Cooldown   float64 `yaml:"cooldown"` // seconds
	Multiplier float64 `yaml:"damage-multiplier"`
}

// Class configures a selectable class.
type Class struct {
	DisplayName string           `yaml:"display-name"`
	BaseStats   Stats            `yaml:"base-stats"`
	PerLevel    Stats            `yaml:"stats-per-level"`
	Skills      map[string]Skill `yaml:"skills"` // keyed by slot: basic-attack, skill-1..3
}

// LevelLimit bounds who may enter a dungeon.
type LevelLimit struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Dungeon configures an enterable dungeon.
type Dungeon struct {
	DisplayName   string     `yaml:"display-name"`
	InstanceWorld string     `yaml:"instance-world"`
	LevelLimit    LevelLimit `yaml:"level-limit"`
}

// ManaRegen configures passive mana regeneration.
type ManaRegen struct {
	RatePerTick float64 `yaml:"rate-per-tick"`
}

// Tables is the full set of gameplay tables. Values are read-only once
// loaded; a reload swaps in a new *Tables.
type Tables struct {
	Classes       map[string]Class   `yaml:"classes"`
	MobExperience map[string]float64 `yaml:"mob-experience"`
	Dungeons      map[string]Dungeon `yaml:"dungeons"`
	ManaRegen     ManaRegen          `yaml:"mana-regeneration"`
}

// Defaults returns the built-in tables used when no policy file is configured.
func Defaults() *Tables {
	return &Tables{
		Classes: map[string]Class{
			"warrior": {
				DisplayName: "Warrior",
				BaseStats:   Stats{Attack: 10, Defense: 10, MaxMana: 50, CritChance: 5, CritDamage: 0.5},
				PerLevel:    Stats{Attack: 2, Defense: 2, MaxMana: 2, CritChance: 0.1, CritDamage: 0.01},
				Skills: map[string]Skill{
					"basic-attack": {SkillID: "warrior_slash", Multiplier: 1},
					"skill-1":      {SkillID: "warrior_charge", ManaCost: 10, Cooldown: 5, Multiplier: 1.5},
					"skill-2":      {SkillID: "warrior_whirlwind", ManaCost: 20, Cooldown: 12, Multiplier: 2},
					"skill-3":      {SkillID: "warrior_earthshatter", ManaCost: 40, Cooldown: 30, Multiplier: 3.5},
				},
			},
			"mage": {
				DisplayName: "Mage",
				BaseStats:   Stats{Attack: 6, Defense: 4, MaxMana: 120, CritChance: 8, CritDamage: 0.6},
				PerLevel:    Stats{Attack: 2.5, Defense: 1, MaxMana: 6, CritChance: 0.15, CritDamage: 0.01},
				Skills: map[string]Skill{
					"basic-attack": {SkillID: "mage_bolt", ManaCost: 2, Multiplier: 1},
					"skill-1":      {SkillID: "mage_fireball", ManaCost: 15, Cooldown: 4, Multiplier: 1.8},
					"skill-2":      {SkillID: "mage_frost_nova", ManaCost: 30, Cooldown: 10, Multiplier: 2.2},
					"skill-3":      {SkillID: "mage_meteor", ManaCost: 60, Cooldown: 40, Multiplier: 4},
				},
			},
		},
		MobExperience: map[string]float64{
			"zombie":   10,
			"skeleton": 12,
			"spider":   8,
		},
		Dungeons: map[string]Dungeon{
			"crypt": {DisplayName: "Forgotten Crypt", InstanceWorld: "dungeon_instances", LevelLimit: LevelLimit{Min: 1, Max: 100}},
		},
		ManaRegen: ManaRegen{RatePerTick: 0.5},
	}
}

// Load reads a policy file. An empty path yields Defaults. Sections the
// file omits keep their defaults.
func Load(path string) (*Tables, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	var parsed Tables
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if parsed.Classes != nil {
		t.Classes = parsed.Classes
	}
	if parsed.MobExperience != nil {
		t.MobExperience = parsed.MobExperience
	}
	if parsed.Dungeons != nil {
		t.Dungeons = parsed.Dungeons
	}
	if parsed.ManaRegen.RatePerTick != 0 {
		t.ManaRegen = parsed.ManaRegen
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return t, nil
}

// Validate checks the tables and fills in dungeon level limits left at zero.
func (t *Tables) Validate() error {
	for id, c := range t.Classes {
		if id == "" {
			return fmt.Errorf("%w: empty class id", ErrInvalidPolicy)
		}
		for slot, s := range c.Skills {
			if s.ManaCost < 0 || s.Cooldown < 0 {
				return fmt.Errorf("%w: class %s skill %s has a negative cost or cooldown", ErrInvalidPolicy, id, slot)
			}
		}
	}
	for mob, exp := range t.MobExperience {
		if exp < 0 {
			return fmt.Errorf("%w: mob %s has negative experience", ErrInvalidPolicy, mob)
		}
	}
	for id, d := range t.Dungeons {
		if d.LevelLimit.Min <= 0 {
			d.LevelLimit.Min = 1
		}
		if d.LevelLimit.Max <= 0 {
			d.LevelLimit.Max = 100
		}
		if d.LevelLimit.Min > d.LevelLimit.Max {
			return fmt.Errorf("%w: dungeon %s level limit %d-%d", ErrInvalidPolicy, id, d.LevelLimit.Min, d.LevelLimit.Max)
		}
		t.Dungeons[id] = d
	}
	if t.ManaRegen.RatePerTick < 0 {
		return fmt.Errorf("%w: negative mana regeneration", ErrInvalidPolicy)
	}
	return nil
}

// Class looks up a class by id.
func (t *Tables) Class(id string) (Class, bool) {
	c, ok := t.Classes[id]
	return c, ok
}

// Dungeon looks up a dungeon by id.
func (t *Tables) Dungeon(id string) (Dungeon, bool) {
	d, ok := t.Dungeons[id]
	return d, ok
}

// Experience returns the payout for a mob type.
func (t *Tables) Experience(mobType string) (float64, bool) {
	exp, ok := t.MobExperience[mobType]
	return exp, ok
}
