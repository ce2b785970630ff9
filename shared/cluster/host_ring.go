// shared/cluster/host_ring.go
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/registry"
	"github.com/stathat/consistent"
)

// ErrNoHosts is returned when no instance of the tracked service type is alive.
var ErrNoHosts = errors.New("no active hosts")

// ServiceSource lists live instances of a service type.
type ServiceSource interface {
	GetActiveServices(ctx context.Context, serviceType string) (map[string]registry.ServiceInfo, error)
}

// HostRing keeps a consistent-hash ring over the live instances of one
// service type and maps keys (group ids) onto them. Picks for a key stay on
// the same host while the membership is unchanged.
type HostRing struct {
	source         ServiceSource
	serviceType    string
	updateInterval time.Duration

	mu    sync.RWMutex
	ring  *consistent.Consistent
	hosts map[string]registry.ServiceInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHostRing creates a ring for serviceType. Call Refresh or Start to populate it.
func NewHostRing(source ServiceSource, serviceType string, updateInterval time.Duration) *HostRing {
	ctx, cancel := context.WithCancel(context.Background())
	return &HostRing{
		source:         source,
		serviceType:    serviceType,
		updateInterval: updateInterval,
		ring:           consistent.New(),
		hosts:          make(map[string]registry.ServiceInfo),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start refreshes the ring until Stop. Run it in a goroutine.
func (h *HostRing) Start() {
	if err := h.Refresh(h.ctx); err != nil {
		log.Printf("WARNING: HostRing: initial refresh for '%s' failed: %v", h.serviceType, err)
	}
	ticker := time.NewTicker(h.updateInterval)
	defer ticker.Stop()

	log.Printf("INFO: HostRing: refresh loop started for service type '%s'.", h.serviceType)
	for {
		select {
		case <-h.ctx.Done():
			log.Printf("INFO: HostRing: refresh loop for '%s' shutting down.", h.serviceType)
			return
		case <-ticker.C:
			if err := h.Refresh(h.ctx); err != nil {
				log.Printf("ERROR: HostRing: %v", err)
			}
		}
	}
}

// Stop ends the refresh loop.
func (h *HostRing) Stop() { h.cancel() }

// Refresh rebuilds the ring when the set of live instances changed.
func (h *HostRing) Refresh(ctx context.Context) error {
	active, err := h.source.GetActiveServices(ctx, h.serviceType)
	if err != nil {
		return fmt.Errorf("failed to get active services for type '%s': %w", h.serviceType, err)
	}

	members := make([]string, 0, len(active))
	for id := range active {
		members = append(members, id)
	}
	slices.Sort(members)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.hosts = active
	current := h.ring.Members()
	slices.Sort(current)
	if slices.Equal(members, current) {
		return nil
	}
	ring := consistent.New()
	for _, m := range members {
		ring.Add(m)
	}
	h.ring = ring
	log.Printf("INFO: HostRing: ring for '%s' updated. Active members: %v", h.serviceType, members)
	return nil
}

// Pick returns the host responsible for key.
func (h *HostRing) Pick(key string) (registry.ServiceInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.hosts) == 0 {
		return registry.ServiceInfo{}, fmt.Errorf("%w for service type %s", ErrNoHosts, h.serviceType)
	}
	id, err := h.ring.Get(key)
	if err != nil {
		return registry.ServiceInfo{}, fmt.Errorf("failed to pick host for '%s' (type %s): %w", key, h.serviceType, err)
	}
	info, ok := h.hosts[id]
	if !ok {
		return registry.ServiceInfo{}, fmt.Errorf("%w: ring member %s has no registry entry", ErrNoHosts, id)
	}
	return info, nil
}

// Size returns the number of hosts on the ring.
func (h *HostRing) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hosts)
}
