package skill

import (
	"errors"
	"testing"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/google/uuid"
)

func newBook(now *time.Time) *Book {
	tables := &policy.Tables{Classes: map[string]policy.Class{
		"mage": {Skills: map[string]policy.Skill{
			"basic-attack": {SkillID: "bolt"},
			"skill-1":      {SkillID: "fireball", ManaCost: 15, Cooldown: 4, Multiplier: 1.8},
		}},
	}}
	return NewBook(tables, cooldown.NewRegistry(cooldown.WithClock(func() time.Time { return *now })))
}

func mage(level int, mana float64) *session.Record {
	rec := session.NewRecord(uuid.New())
	rec.Role = "mage"
	rec.Level = level
	rec.CurrentMana = mana
	return rec
}

func TestCastSpendsManaAndStartsCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	book := newBook(&now)
	rec := mage(5, 40)

	cast, err := book.Cast(rec, Skill1)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if cast.SkillID != "fireball" || cast.Multiplier != 1.8 || rec.CurrentMana != 25 {
		t.Fatalf("cast = %+v, mana %v", cast, rec.CurrentMana)
	}

	if _, err := book.Cast(rec, Skill1); !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("recast = %v, want ErrOnCooldown", err)
	}
	if rec.CurrentMana != 25 {
		t.Fatal("refused cast spent mana")
	}

	now = now.Add(4 * time.Second)
	if _, err := book.Cast(rec, Skill1); err != nil {
		t.Fatalf("cast after cooldown = %v", err)
	}
}

func TestCastRefusals(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	book := newBook(&now)

	tests := []struct {
		name string
		rec  *session.Record
		slot Slot
		want error
	}{
		{"no class", session.NewRecord(uuid.New()), BasicAttack, ErrNoClass},
		{"level too low", mage(4, 100), Skill1, ErrLevelTooLow},
		{"not enough mana", mage(5, 10), Skill1, ErrNotEnoughMana},
		{"slot not configured", mage(20, 100), Skill3, ErrUnknownSkill},
		{"bogus slot", mage(20, 100), Slot("ultimate"), ErrUnknownSkill},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := book.Cast(tt.rec, tt.slot); !errors.Is(err, tt.want) {
				t.Fatalf("Cast = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBasicAttackWithoutCostOrCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	book := newBook(&now)
	rec := mage(1, 0)

	for i := 0; i < 3; i++ {
		cast, err := book.Cast(rec, BasicAttack)
		if err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
		if cast.Multiplier != 1 {
			t.Fatalf("multiplier = %v, want default 1", cast.Multiplier)
		}
	}
}
