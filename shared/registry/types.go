// shared/registry/types.go
package registry

import (
	"net"
	"strconv"
	"time"
)

// ServiceInfo is one registered service instance as stored in the registry hash.
type ServiceInfo struct {
	ServiceID   string            `json:"serviceId"`
	ServiceType string            `json:"serviceType"` // e.g. "rpg-game-service", "dungeon-host"
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	LastSeen    int64             `json:"last_seen"` // unix millis
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Addr is the host:port the instance listens on.
func (s ServiceInfo) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Alive reports whether the last heartbeat is within ttl of now.
func (s ServiceInfo) Alive(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(s.LastSeen)) <= ttl
}
