// shared/service/instanceclient.go
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Ftotnem/RPG-SERVICES/shared/api"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/Ftotnem/RPG-SERVICES/shared/registry"
	"github.com/google/uuid"
)

// ErrNoMembers is returned when an instance is requested for nobody.
var ErrNoMembers = errors.New("instance request has no members")

// HostPicker chooses the dungeon host responsible for a key.
type HostPicker interface {
	Pick(key string) (registry.ServiceInfo, error)
}

// CreateInstanceRequest is the body of POST /instances on a dungeon host.
type CreateInstanceRequest struct {
	DungeonID string   `json:"dungeonId"`
	Leader    string   `json:"leader"`
	Members   []string `json:"members"`
}

// InstanceClient asks dungeon hosts to create instances. The host is picked
// from the ring by the leader's id, so one group keeps landing on the same host.
type InstanceClient struct {
	picker     HostPicker
	httpClient *http.Client
	scheme     string
}

// NewInstanceClient creates an InstanceClient using the shared default HTTP client.
func NewInstanceClient(picker HostPicker) *InstanceClient {
	return &InstanceClient{
		picker:     picker,
		httpClient: api.NewDefaultHTTPClient(),
		scheme:     "http",
	}
}

// RequestInstance creates an instance of dungeonID for members. members[0]
// is the group leader.
func (c *InstanceClient) RequestInstance(ctx context.Context, dungeonID string, members []uuid.UUID) (models.InstanceView, error) {
	if len(members) == 0 {
		return models.InstanceView{}, ErrNoMembers
	}
	leader := members[0].String()
	host, err := c.picker.Pick(leader)
	if err != nil {
		return models.InstanceView{}, fmt.Errorf("failed to pick dungeon host: %w", err)
	}

	req := CreateInstanceRequest{DungeonID: dungeonID, Leader: leader, Members: make([]string, len(members))}
	for i, m := range members {
		req.Members[i] = m.String()
	}

	client := api.NewClient(fmt.Sprintf("%s://%s", c.scheme, host.Addr()), c.httpClient)
	var view models.InstanceView
	if err := client.Post(ctx, "/instances", req, &view); err != nil {
		return models.InstanceView{}, fmt.Errorf("dungeon host %s refused instance for %s: %w", host.ServiceID, dungeonID, err)
	}
	if view.Host == "" {
		view.Host = host.Addr()
	}
	if view.DungeonID == "" {
		view.DungeonID = dungeonID
	}
	return view, nil
}
