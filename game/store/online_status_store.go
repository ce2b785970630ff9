// game/store/online_status_store.go
package store

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	redisu "github.com/Ftotnem/RPG-SERVICES/shared/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OnlineStatusStore mirrors the in-process presence directory into Redis so
// other nodes (and dungeon hosts) can see who is connected where. Keys carry
// a TTL and are kept alive by RefreshOnline; a crashed node's players drop
// out on their own.
type OnlineStatusStore struct {
	client    redis.UniversalClient
	onlineTTL time.Duration
}

// NewOnlineStatusStore creates an OnlineStatusStore.
func NewOnlineStatusStore(client redis.UniversalClient, onlineTTL time.Duration) *OnlineStatusStore {
	return &OnlineStatusStore{
		client:    client,
		onlineTTL: onlineTTL,
	}
}

// SetOnline records the session start (Unix seconds) under online:{uuid}:.
func (s *OnlineStatusStore) SetOnline(ctx context.Context, id uuid.UUID, sessionStart time.Time) error {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, id)
	if err := s.client.Set(ctx, key, sessionStart.Unix(), s.onlineTTL).Err(); err != nil {
		return fmt.Errorf("failed to set player %s online in Redis: %w", id, err)
	}
	return nil
}

// IsOnline checks whether the online key exists.
func (s *OnlineStatusStore) IsOnline(ctx context.Context, id uuid.UUID) (bool, error) {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, id)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check online status for player %s: %w", id, err)
	}
	return n == 1, nil
}

// SessionStart returns when the player's current session began.
func (s *OnlineStatusStore) SessionStart(ctx context.Context, id uuid.UUID) (time.Time, error) {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, id)
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, fmt.Errorf("player %s is not online: %w", id, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read session start for player %s: %w", id, err)
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session start %q for player %s: %w", val, id, err)
	}
	return time.Unix(ts, 0), nil
}

// RemoveOnline deletes the online key.
func (s *OnlineStatusStore) RemoveOnline(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf(redisu.OnlineKeyPrefix, id)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove online status for player %s: %w", id, err)
	}
	return nil
}

// RefreshOnline extends the TTL for each id. Ids whose key already expired
// are re-created with the current time as session start.
func (s *OnlineStatusStore) RefreshOnline(ctx context.Context, ids []uuid.UUID) error {
	var failed int
	for _, id := range ids {
		key := fmt.Sprintf(redisu.OnlineKeyPrefix, id)
		ok, err := s.client.Expire(ctx, key, s.onlineTTL).Result()
		if err != nil {
			failed++
			log.Printf("WARNING: OnlineStatusStore: failed to refresh %s: %v", id, err)
			continue
		}
		if !ok {
			if err := s.SetOnline(ctx, id, time.Now()); err != nil {
				failed++
				log.Printf("WARNING: OnlineStatusStore: failed to restore %s: %v", id, err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to refresh %d of %d online keys", failed, len(ids))
	}
	return nil
}

// AllOnline returns every player marked online across the cluster.
func (s *OnlineStatusStore) AllOnline(ctx context.Context) ([]uuid.UUID, error) {
	keys, err := redisu.ScanKeys(ctx, s.client, fmt.Sprintf(redisu.OnlineKeyPrefix, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan online players: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		start, end := strings.Index(key, "{"), strings.Index(key, "}")
		if start == -1 || end <= start {
			log.Printf("WARNING: OnlineStatusStore: malformed online key %q", key)
			continue
		}
		id, err := uuid.Parse(key[start+1 : end])
		if err != nil {
			log.Printf("WARNING: OnlineStatusStore: bad uuid in key %q: %v", key, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
