package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	tables, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := tables.Class("warrior"); !ok {
		t.Fatal("default tables should carry the warrior class")
	}
	if tables.ManaRegen.RatePerTick != 0.5 {
		t.Fatalf("regen = %v", tables.ManaRegen.RatePerTick)
	}
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	body := `
mob-experience:
  dragon: 500
dungeons:
  lair:
    display-name: Dragon Lair
    level-limit:
      min: 30
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exp, ok := tables.Experience("dragon"); !ok || exp != 500 {
		t.Fatalf("dragon exp = %v,%v", exp, ok)
	}
	if _, ok := tables.Experience("zombie"); ok {
		t.Fatal("mob table should be replaced, not merged")
	}
	lair, ok := tables.Dungeon("lair")
	if !ok || lair.LevelLimit.Min != 30 || lair.LevelLimit.Max != 100 {
		t.Fatalf("lair = %+v", lair)
	}
	if _, ok := tables.Class("mage"); !ok {
		t.Fatal("omitted classes section should keep defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	if err := os.WriteFile(path, []byte("mob-experience:\n  slime: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("Load = %v, want ErrInvalidPolicy", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("missing file should fail")
	}
}
