package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOnlineStatusLifecycle(t *testing.T) {
	server, client := newRedisClientForTest(t)
	s := NewOnlineStatusStore(client, 15*time.Second)
	ctx := context.Background()
	id := uuid.New()
	start := time.Unix(1_700_000_000, 0)

	if err := s.SetOnline(ctx, id, start); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	online, err := s.IsOnline(ctx, id)
	if err != nil || !online {
		t.Fatalf("IsOnline = %v, %v; want true", online, err)
	}
	got, err := s.SessionStart(ctx, id)
	if err != nil || !got.Equal(start) {
		t.Fatalf("SessionStart = %v, %v; want %v", got, err, start)
	}

	server.FastForward(16 * time.Second)
	if online, _ := s.IsOnline(ctx, id); online {
		t.Fatal("online key should expire without a refresh")
	}
}

func TestOnlineStatusRefreshKeepsAlive(t *testing.T) {
	server, client := newRedisClientForTest(t)
	s := NewOnlineStatusStore(client, 10*time.Second)
	ctx := context.Background()
	kept, lapsed := uuid.New(), uuid.New()

	if err := s.SetOnline(ctx, kept, time.Now()); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	server.FastForward(8 * time.Second)
	if err := s.RefreshOnline(ctx, []uuid.UUID{kept, lapsed}); err != nil {
		t.Fatalf("RefreshOnline: %v", err)
	}
	server.FastForward(8 * time.Second)

	for _, id := range []uuid.UUID{kept, lapsed} {
		if online, _ := s.IsOnline(ctx, id); !online {
			t.Fatalf("player %s should still be online after refresh", id)
		}
	}
}

func TestOnlineStatusAllOnlineAndRemove(t *testing.T) {
	_, client := newRedisClientForTest(t)
	s := NewOnlineStatusStore(client, time.Minute)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	_ = s.SetOnline(ctx, a, time.Now())
	_ = s.SetOnline(ctx, b, time.Now())
	client.Set(ctx, "online:{not-a-uuid}:", 1, 0)

	ids, err := s.AllOnline(ctx)
	if err != nil {
		t.Fatalf("AllOnline: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("AllOnline returned %v, want 2 ids", ids)
	}

	if err := s.RemoveOnline(ctx, a); err != nil {
		t.Fatalf("RemoveOnline: %v", err)
	}
	if online, _ := s.IsOnline(ctx, a); online {
		t.Fatal("player should be offline after RemoveOnline")
	}
}
