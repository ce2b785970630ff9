package session

import (
	"errors"
	"math"
	"testing"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

func TestRequiredExpCurve(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{1, 100},
		{2, 115},
		{3, 132},
		{4, 152},
		{MaxLevel, math.MaxFloat64},
	}
	for _, tt := range tests {
		if got := RequiredExp(tt.level); got != tt.want {
			t.Errorf("RequiredExp(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestRequiredExpStrictlyIncreasing(t *testing.T) {
	prev := RequiredExp(1)
	for level := 2; level < MaxLevel; level++ {
		cur := RequiredExp(level)
		if cur <= prev {
			t.Fatalf("RequiredExp(%d)=%v is not above RequiredExp(%d)=%v", level, cur, level-1, prev)
		}
		prev = cur
	}
}

func TestAddExperienceRollsOverMultipleLevels(t *testing.T) {
	r := NewRecord(uuid.New())
	r.Role = "WARRIOR"

	if gained := r.AddExperience(250); gained != 2 {
		t.Fatalf("levels gained = %d, want 2", gained)
	}
	if r.Level != 3 || r.CurrentExp != 35 || r.RequiredExp != 132 {
		t.Fatalf("got level=%d exp=%v required=%v, want 3/35/132", r.Level, r.CurrentExp, r.RequiredExp)
	}
}

func TestAddExperienceNeverExceedsMaxLevel(t *testing.T) {
	r := NewRecord(uuid.New())
	r.Role = "MAGE"
	r.AddExperience(math.MaxFloat64 / 2)
	if r.Level != MaxLevel {
		t.Fatalf("level = %d, want %d", r.Level, MaxLevel)
	}
	if gained := r.AddExperience(1e9); gained != 0 || r.Level != MaxLevel {
		t.Fatalf("capped record gained %d levels", gained)
	}
}

func TestRegenAndSpendMana(t *testing.T) {
	r := NewRecord(uuid.New())
	r.Role = "MAGE"
	r.MaxMana.Bonus = 20

	if !r.SpendMana(30) || r.CurrentMana != 70 {
		t.Fatalf("SpendMana left %v", r.CurrentMana)
	}
	if r.SpendMana(500) {
		t.Fatal("SpendMana should refuse when the pool is short")
	}
	for i := 0; i < 200; i++ {
		r.RegenMana(0.5)
	}
	if r.CurrentMana != 120 {
		t.Fatalf("regen should stop at base+bonus=120, got %v", r.CurrentMana)
	}
}

func TestProgressionRoundTripDropsBonusAndUnknownExtensions(t *testing.T) {
	id := uuid.New()
	r := NewRecord(id)
	r.Role = "ARCHER"
	r.Level = 9
	r.Attack = Stat{Base: 14, Bonus: 6}
	if err := r.Extensions.Set(ExtDamageSkin, "flame"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	p := r.Progression()
	if p.BaseAttack != 14 || p.Extensions["damage_skin"] != "flame" {
		t.Fatalf("unexpected snapshot %+v", p)
	}
	p.Extensions["legacy_flag"] = "1"

	back := recordFromProgression(id, p)
	if back.Attack.Bonus != 0 || back.Attack.Base != 14 || back.Level != 9 {
		t.Fatalf("unexpected record %+v", back)
	}
	if back.RequiredExp != RequiredExp(9) {
		t.Fatalf("required exp should be derived from level, got %v", back.RequiredExp)
	}
	if back.DamageSkin() != "flame" || len(back.Extensions.Keys()) != 1 {
		t.Fatalf("extensions = %v", back.Extensions.Keys())
	}
}

func TestRecordFromProgressionClamps(t *testing.T) {
	back := recordFromProgression(uuid.New(), &models.Progression{Level: 500, CurrentExp: -3, CurrentMana: 900})
	if back.Level != MaxLevel || back.CurrentExp != 0 {
		t.Fatalf("clamp failed: %+v", back)
	}
	if back.MaxMana.Base != DefaultMaxMana || back.CurrentMana != DefaultMaxMana {
		t.Fatalf("mana clamp failed: %+v", back)
	}
}

func TestExtensionsRejectUnknownKeysAndBadValues(t *testing.T) {
	var e Extensions
	if err := e.Set("favourite_colour", "blue"); !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("Set unknown = %v", err)
	}
	if err := e.Set(ExtDamageSkin, "Not Valid!"); !errors.Is(err, ErrInvalidExtension) {
		t.Fatalf("Set invalid = %v", err)
	}
	r := NewRecord(uuid.New())
	if r.DamageSkin() != DefaultDamageSkin {
		t.Fatalf("default skin = %q", r.DamageSkin())
	}
}
