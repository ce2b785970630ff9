package cooldown

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRemainingCountsDownAndExpiresLazily(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(WithClock(clock.now))
	id := uuid.New()

	if got := r.Remaining(id, PurposeDungeon); got != 0 {
		t.Fatalf("Remaining on unknown key = %v, want 0", got)
	}
	if !r.TrySet(id, PurposeDungeon, 30*time.Minute) {
		t.Fatal("TrySet returned false")
	}

	clock.advance(10 * time.Minute)
	if got := r.Remaining(id, PurposeDungeon); got != 20*time.Minute {
		t.Fatalf("Remaining = %v, want 20m", got)
	}

	clock.advance(20 * time.Minute)
	if got := r.Remaining(id, PurposeDungeon); got != 0 {
		t.Fatalf("Remaining at expiry = %v, want 0", got)
	}
	if r.Len() != 0 {
		t.Fatalf("expired entry was not removed on read, len=%d", r.Len())
	}
}

func TestTrySetOverwrites(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	r := NewRegistry(WithClock(clock.now))
	id := uuid.New()

	r.TrySet(id, "skill:fireball", 10*time.Second)
	r.TrySet(id, "skill:fireball", 2*time.Second)
	if got := r.Remaining(id, "skill:fireball"); got != 2*time.Second {
		t.Fatalf("Remaining = %v, want 2s", got)
	}
}

func TestPurposesAreIndependent(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	r.TrySet(id, "skill:a", time.Hour)

	if r.Active(id, "skill:b") {
		t.Fatal("cooldown leaked across purposes")
	}
	if r.Active(uuid.New(), "skill:a") {
		t.Fatal("cooldown leaked across subjects")
	}
	r.Clear(id, "skill:a")
	if r.Active(id, "skill:a") {
		t.Fatal("Clear did not drop the cooldown")
	}
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	r := NewRegistry(WithClock(clock.now))
	a, b := uuid.New(), uuid.New()
	r.TrySet(a, PurposeDungeon, time.Second)
	r.TrySet(b, PurposeDungeon, time.Minute)

	clock.advance(2 * time.Second)
	if removed := r.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if !r.Active(b, PurposeDungeon) {
		t.Fatal("Sweep dropped a live cooldown")
	}
}
