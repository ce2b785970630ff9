// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ServiceRegistrar registers this instance and keeps its heartbeat fresh.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	metadata    map[string]string
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewServiceRegistrar creates a registrar with a fresh instance id.
func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType string, cfg *config.CommonConfig, metadata map[string]string) *ServiceRegistrar {
	md := map[string]string{"version": "1.0"}
	for k, v := range metadata {
		md[k] = v
	}
	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   fmt.Sprintf("%s-%s", serviceType, uuid.New().String()),
		metadata:    md,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins heartbeating in a goroutine.
func (sr *ServiceRegistrar) Start() {
	log.Printf("INFO: Starting service registrar for %s (ID: %s) at %s:%d",
		sr.serviceType, sr.serviceID, sr.cfg.ServiceIP, sr.cfg.ServicePort)
	go sr.run()
}

// Stop halts heartbeating and removes this instance from the registry.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sr.redisClient.HDel(ctx, hashKey(sr.serviceType), sr.serviceID).Err(); err != nil {
		log.Printf("ERROR: Failed to remove service %s (ID: %s) from Redis registry on shutdown: %v",
			sr.serviceType, sr.serviceID, err)
		return
	}
	log.Printf("INFO: Service %s (ID: %s) removed from Redis registry.", sr.serviceType, sr.serviceID)
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		t := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	sr.heartbeat(context.Background())
	for {
		select {
		case <-ticker.C:
			sr.heartbeat(context.Background())
		case <-cleanup:
			sr.cleanup(context.Background())
		case <-sr.stopChan:
			return
		}
	}
}

// heartbeat writes this instance's ServiceInfo with a fresh LastSeen.
func (sr *ServiceRegistrar) heartbeat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	infoJSON, err := json.Marshal(ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    time.Now().UnixMilli(),
		Metadata:    sr.metadata,
	})
	if err != nil {
		log.Printf("ERROR: Failed to marshal ServiceInfo for %s (ID: %s): %v", sr.serviceType, sr.serviceID, err)
		return
	}
	if err := sr.redisClient.HSet(ctx, hashKey(sr.serviceType), sr.serviceID, infoJSON).Err(); err != nil {
		log.Printf("ERROR: Failed to heartbeat service %s (ID: %s) to Redis: %v", sr.serviceType, sr.serviceID, err)
	}
}

// cleanup deletes entries of this service type that are malformed or whose
// heartbeat is older than HeartbeatTTL. It returns how many were removed.
func (sr *ServiceRegistrar) cleanup(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := hashKey(sr.serviceType)
	results, err := sr.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		log.Printf("ERROR: Cleanup failed to get all services for type %s: %v", sr.serviceType, err)
		return 0
	}

	now := time.Now()
	removed := 0
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err == nil && info.Alive(now, sr.cfg.HeartbeatTTL) {
			continue
		}
		if err := sr.redisClient.HDel(ctx, key, instanceID).Err(); err != nil {
			log.Printf("ERROR: Cleanup: Failed to delete stale entry %s for type %s: %v", instanceID, sr.serviceType, err)
			continue
		}
		removed++
		log.Printf("INFO: Cleanup: Removed stale service %s from %s registry.", instanceID, sr.serviceType)
	}
	return removed
}

// GetServiceID returns the unique ID assigned to this service instance.
func (sr *ServiceRegistrar) GetServiceID() string { return sr.serviceID }

// GetServiceType returns the type of this service instance.
func (sr *ServiceRegistrar) GetServiceType() string { return sr.serviceType }
