// game/presence/presence.go
package presence

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Handle is a reachable, connected player.
type Handle interface {
	ID() uuid.UUID
	Name() string
	SendMessage(text string)
}

// Directory answers "who is connected right now".
type Directory interface {
	IsOnline(id uuid.UUID) bool
	Lookup(id uuid.UUID) (Handle, bool)
}

// Messenger delivers text to a player's client.
type Messenger interface {
	Deliver(id uuid.UUID, text string)
}

type entry struct {
	handle Handle
	since  time.Time
	world  string
}

// Registry is the in-process Directory for players connected to this node.
// Owned by the primary context.
type Registry struct {
	players map[uuid.UUID]*entry
	now     func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[uuid.UUID]*entry), now: time.Now}
}

// Add registers a handle, replacing any previous handle for the same id.
func (r *Registry) Add(h Handle, world string) {
	r.players[h.ID()] = &entry{handle: h, since: r.now(), world: world}
}

// Remove unregisters id and reports whether it was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// IsOnline implements Directory.
func (r *Registry) IsOnline(id uuid.UUID) bool {
	_, ok := r.players[id]
	return ok
}

// Lookup implements Directory.
func (r *Registry) Lookup(id uuid.UUID) (Handle, bool) {
	e, ok := r.players[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// World returns the world the player was last seen in.
func (r *Registry) World(id uuid.UUID) (string, bool) {
	e, ok := r.players[id]
	if !ok {
		return "", false
	}
	return e.world, true
}

// SetWorld records a world change.
func (r *Registry) SetWorld(id uuid.UUID, world string) {
	if e, ok := r.players[id]; ok {
		e.world = world
	}
}

// Online lists connected ids in a stable order.
func (r *Registry) Online() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Len returns the number of connected players.
func (r *Registry) Len() int { return len(r.players) }

// RemoteHandle is a Handle for a player whose client is reached through a
// Messenger.
type RemoteHandle struct {
	id        uuid.UUID
	name      string
	messenger Messenger
}

// NewRemoteHandle binds a player to a Messenger.
func NewRemoteHandle(id uuid.UUID, name string, m Messenger) *RemoteHandle {
	return &RemoteHandle{id: id, name: name, messenger: m}
}

func (h *RemoteHandle) ID() uuid.UUID { return h.id }
func (h *RemoteHandle) Name() string  { return h.name }

func (h *RemoteHandle) SendMessage(text string) {
	h.messenger.Deliver(h.id, text)
}
