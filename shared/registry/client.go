// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistryClient reads the registry. Services that only discover others use
// it without registering themselves.
type RegistryClient struct {
	redisClient    redis.UniversalClient
	serviceTimeout time.Duration
	now            func() time.Time
}

// NewRegistryClient wraps an initialized Redis client. Instances whose last
// heartbeat is older than serviceTimeout are treated as gone.
func NewRegistryClient(redisClient redis.UniversalClient, serviceTimeout time.Duration) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
		now:            time.Now,
	}
}

// GetActiveServices returns the live instances of serviceType keyed by instance id.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	results, err := rc.redisClient.HGetAll(ctx, hashKey(serviceType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}

	active := make(map[string]ServiceInfo, len(results))
	now := rc.now()
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			// The registrar's cleanup loop deletes malformed entries.
			log.Printf("WARNING: RegistryClient: Failed to unmarshal ServiceInfo for ID %s (type %s): %v", instanceID, serviceType, err)
			continue
		}
		if info.Alive(now, rc.serviceTimeout) {
			active[instanceID] = info
		}
	}
	return active, nil
}
