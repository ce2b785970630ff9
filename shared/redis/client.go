// shared/redis/client.go
package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClusterClient creates a Redis Cluster client and pings it.
func NewRedisClusterClient(addrs []string, password string) (*redis.ClusterClient, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}

	rdb := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        addrs,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  6 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis cluster at %v: %w", addrs, err)
	}
	log.Println("INFO: Connected to Redis cluster.")
	return rdb, nil
}

// ScanKeys collects every key matching pattern. On a cluster it walks all
// masters; on a single node it scans directly.
func ScanKeys(ctx context.Context, client redis.UniversalClient, pattern string) ([]string, error) {
	var keys []string
	switch c := client.(type) {
	case *redis.ClusterClient:
		// ForEachMaster visits nodes concurrently.
		var mu sync.Mutex
		err := c.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			var local []string
			iter := node.Scan(ctx, 0, pattern, 0).Iterator()
			for iter.Next(ctx) {
				local = append(local, iter.Val())
			}
			if err := iter.Err(); err != nil {
				return err
			}
			mu.Lock()
			keys = append(keys, local...)
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %q across cluster masters: %w", pattern, err)
		}
	case *redis.Client:
		iter := c.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
	default:
		return nil, fmt.Errorf("unsupported redis client type %T", client)
	}
	return keys, nil
}
