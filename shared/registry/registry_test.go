package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/config"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func testCommon() *config.CommonConfig {
	return &config.CommonConfig{
		HeartbeatInterval: time.Hour,
		HeartbeatTTL:      15 * time.Second,
		ServiceIP:         "10.0.0.5",
		ServicePort:       8082,
	}
}

func TestHeartbeatIsVisibleToClient(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	sr := NewServiceRegistrar(client, ServiceTypeDungeonHost, testCommon(), map[string]string{"capacity": "8"})
	sr.heartbeat(ctx)

	active, err := NewRegistryClient(client, 15*time.Second).GetActiveServices(ctx, ServiceTypeDungeonHost)
	if err != nil {
		t.Fatalf("GetActiveServices: %v", err)
	}
	info, ok := active[sr.GetServiceID()]
	if !ok {
		t.Fatalf("registered instance missing from %v", active)
	}
	if info.Addr() != "10.0.0.5:8082" || info.Metadata["capacity"] != "8" || info.Metadata["version"] != "1.0" {
		t.Fatalf("info = %+v", info)
	}
}

func TestStaleEntriesAreFilteredAndCleaned(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	stale, _ := json.Marshal(ServiceInfo{ServiceID: "old", LastSeen: time.Now().Add(-time.Minute).UnixMilli()})
	client.HSet(ctx, hashKey(ServiceTypeGame), "old", stale)
	client.HSet(ctx, hashKey(ServiceTypeGame), "garbage", "{not json")

	sr := NewServiceRegistrar(client, ServiceTypeGame, testCommon(), nil)
	sr.heartbeat(ctx)

	active, err := NewRegistryClient(client, 15*time.Second).GetActiveServices(ctx, ServiceTypeGame)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %v, want only the fresh instance", active)
	}

	if removed := sr.cleanup(ctx); removed != 2 {
		t.Fatalf("cleanup removed %d, want 2", removed)
	}
	if n := client.HLen(ctx, hashKey(ServiceTypeGame)).Val(); n != 1 {
		t.Fatalf("hash length = %d", n)
	}
}

func TestStopDeregisters(t *testing.T) {
	_, client := newTestRedis(t)
	sr := NewServiceRegistrar(client, ServiceTypeGame, testCommon(), nil)
	sr.Start()
	// Start heartbeats immediately; wait for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for client.HLen(context.Background(), hashKey(ServiceTypeGame)).Val() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial heartbeat never written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	sr.Stop()
	if n := client.HLen(context.Background(), hashKey(ServiceTypeGame)).Val(); n != 0 {
		t.Fatalf("hash length after Stop = %d", n)
	}
}
