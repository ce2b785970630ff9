// game/presence/redis_messenger.go
package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	redisu "github.com/Ftotnem/RPG-SERVICES/shared/redis"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisMessenger publishes player-facing text on <prefix>:{uuid}. The host
// server's bridge subscribes and forwards to the client. Publishing happens
// on a worker so chat never blocks the primary context.
type RedisMessenger struct {
	client  redis.UniversalClient
	sched   sched.Scheduler
	prefix  string
	timeout time.Duration
}

// NewRedisMessenger creates a RedisMessenger on the default channel prefix.
func NewRedisMessenger(client redis.UniversalClient, s sched.Scheduler) *RedisMessenger {
	return &RedisMessenger{client: client, sched: s, prefix: redisu.DefaultMessageChannelPrefix, timeout: 2 * time.Second}
}

// WithChannelPrefix switches the channel prefix.
func (m *RedisMessenger) WithChannelPrefix(prefix string) *RedisMessenger {
	if prefix != "" {
		m.prefix = prefix
	}
	return m
}

// Channel returns the default pub/sub channel for id.
func Channel(id uuid.UUID) string {
	return channelFor(redisu.DefaultMessageChannelPrefix, id)
}

func channelFor(prefix string, id uuid.UUID) string {
	return fmt.Sprintf(redisu.MessageChannelFormat, prefix, id)
}

// Deliver implements Messenger.
func (m *RedisMessenger) Deliver(id uuid.UUID, text string) {
	m.sched.RunOnWorker(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.client.Publish(ctx, channelFor(m.prefix, id), text).Err(); err != nil {
			log.Printf("WARNING: RedisMessenger: failed to deliver message to %s: %v", id, err)
		}
	})
}
