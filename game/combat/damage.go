// game/combat/damage.go
package combat

import "math/rand"

// DefenseConstant shapes the defense curve: reduction = def / (def + DefenseConstant).
const DefenseConstant = 100.0

// Attack describes the attacker side of a hit. CritChance is a percentage.
type Attack struct {
	Raw        float64 // host-supplied damage before stats
	Power      float64 // effective attack stat
	CritChance float64
	CritDamage float64 // extra multiplier, 0.5 = +50%
}

// Hit is the resolved outcome.
type Hit struct {
	Amount   float64
	Critical bool
}

// Roll returns a value in [0, 100).
type Roll func() float64

// DefaultRoll draws from math/rand.
func DefaultRoll() float64 { return rand.Float64() * 100 }

// Resolve applies attack power, crits and the target's defense.
func Resolve(a Attack, defense float64, roll Roll) Hit {
	if roll == nil {
		roll = DefaultRoll
	}
	dmg := a.Raw + a.Power
	crit := a.CritChance > 0 && roll() < a.CritChance
	if crit {
		dmg *= 1 + a.CritDamage
	}
	if defense > 0 {
		dmg *= 1 - defense/(defense+DefenseConstant)
	}
	if dmg < 0 {
		dmg = 0
	}
	return Hit{Amount: dmg, Critical: crit}
}
