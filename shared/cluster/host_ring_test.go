package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/Ftotnem/RPG-SERVICES/shared/registry"
	"github.com/google/uuid"
)

type staticSource struct {
	hosts map[string]registry.ServiceInfo
	err   error
}

func (s *staticSource) GetActiveServices(context.Context, string) (map[string]registry.ServiceInfo, error) {
	return s.hosts, s.err
}

func hosts(ids ...string) map[string]registry.ServiceInfo {
	m := make(map[string]registry.ServiceInfo, len(ids))
	for i, id := range ids {
		m[id] = registry.ServiceInfo{ServiceID: id, IP: "10.0.0.1", Port: 9000 + i}
	}
	return m
}

func TestPickIsStableForAKey(t *testing.T) {
	src := &staticSource{hosts: hosts("a", "b", "c")}
	ring := NewHostRing(src, registry.ServiceTypeDungeonHost, 0)
	if err := ring.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	key := uuid.NewString()
	first, err := ring.Pick(key)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := ring.Pick(key)
		if again.ServiceID != first.ServiceID {
			t.Fatalf("Pick moved from %s to %s", first.ServiceID, again.ServiceID)
		}
	}
	if ring.Size() != 3 {
		t.Fatalf("Size = %d", ring.Size())
	}
}

func TestPickFollowsMembership(t *testing.T) {
	src := &staticSource{hosts: hosts("only")}
	ring := NewHostRing(src, registry.ServiceTypeDungeonHost, 0)
	if _, err := ring.Pick("x"); !errors.Is(err, ErrNoHosts) {
		t.Fatalf("Pick on empty ring = %v", err)
	}

	_ = ring.Refresh(context.Background())
	if got, err := ring.Pick("x"); err != nil || got.ServiceID != "only" {
		t.Fatalf("Pick = %+v,%v", got, err)
	}

	src.hosts = map[string]registry.ServiceInfo{}
	_ = ring.Refresh(context.Background())
	if _, err := ring.Pick("x"); !errors.Is(err, ErrNoHosts) {
		t.Fatalf("Pick after hosts vanished = %v", err)
	}
}

func TestRefreshErrorKeepsRing(t *testing.T) {
	src := &staticSource{hosts: hosts("a")}
	ring := NewHostRing(src, registry.ServiceTypeDungeonHost, 0)
	_ = ring.Refresh(context.Background())

	src.err = errors.New("redis down")
	if err := ring.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should surface the source error")
	}
	if _, err := ring.Pick("x"); err != nil {
		t.Fatalf("ring lost its members on a failed refresh: %v", err)
	}
}
