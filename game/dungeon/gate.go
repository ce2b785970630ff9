// game/dungeon/gate.go
package dungeon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
)

var (
	ErrUnknownDungeon   = errors.New("unknown dungeon")
	ErrAlreadyInside    = errors.New("group already in a dungeon")
	ErrEntryPending     = errors.New("dungeon entry already requested")
	ErrLevelRestricted  = errors.New("member outside the dungeon level limit")
	ErrMemberOnCooldown = errors.New("member on dungeon cooldown")
	ErrNotInside        = errors.New("not in a dungeon")
	ErrEntrantsGone     = errors.New("every entering member left before the instance was ready")
)

// DefaultCooldown applies between dungeon entries.
const DefaultCooldown = 30 * time.Minute

// Provisioner creates dungeon instances on a host.
type Provisioner interface {
	RequestInstance(ctx context.Context, dungeonID string, members []uuid.UUID) (models.InstanceView, error)
}

// Groups is the part of the party coordinator the gate depends on.
type Groups interface {
	GroupOf(member uuid.UUID) (party.Snapshot, bool)
	Broadcast(member uuid.UUID, text string) int
}

// Levels resolves resident session records.
type Levels interface {
	Get(id uuid.UUID) (*session.Record, bool)
}

type instance struct {
	view    models.InstanceView
	group   uuid.UUID
	members map[uuid.UUID]bool
}

// Gate admits groups into dungeon instances. It is owned by the primary context.
type Gate struct {
	sched     sched.Scheduler
	tables    *policy.Tables
	groups    Groups
	levels    Levels
	dir       presence.Directory
	cooldowns *cooldown.Registry
	prov      Provisioner

	cooldown time.Duration
	timeout  time.Duration

	instances  map[string]*instance
	byMember   map[uuid.UUID]*instance
	byGroup    map[uuid.UUID]*instance
	requesting map[uuid.UUID]bool
}

// Options tunes a Gate.
type Options struct {
	Cooldown       time.Duration
	RequestTimeout time.Duration
}

// NewGate creates a Gate.
func NewGate(s sched.Scheduler, t *policy.Tables, groups Groups, levels Levels, dir presence.Directory,
	cooldowns *cooldown.Registry, prov Provisioner, opts Options) *Gate {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Gate{
		sched:      s,
		tables:     t,
		groups:     groups,
		levels:     levels,
		dir:        dir,
		cooldowns:  cooldowns,
		prov:       prov,
		cooldown:   opts.Cooldown,
		timeout:    opts.RequestTimeout,
		instances:  make(map[string]*instance),
		byMember:   make(map[uuid.UUID]*instance),
		byGroup:    make(map[uuid.UUID]*instance),
		requesting: make(map[uuid.UUID]bool),
	}
}

// SetTables swaps the tables after a reload.
func (g *Gate) SetTables(t *policy.Tables) { g.tables = t }

// SetCooldown changes the entry cooldown for future entries.
func (g *Gate) SetCooldown(d time.Duration) {
	if d > 0 {
		g.cooldown = d
	}
}

// Enter validates an entry request from caller and, if it passes, asks the
// provisioner for an instance on a worker. A validation failure is returned
// directly; the provisioning outcome is delivered to done on the primary
// context.
func (g *Gate) Enter(caller uuid.UUID, dungeonID string, done func(models.InstanceView, error)) error {
	def, ok := g.tables.Dungeon(dungeonID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDungeon, dungeonID)
	}
	grp, ok := g.groups.GroupOf(caller)
	if !ok {
		return party.ErrNotGrouped
	}
	if grp.Leader != caller {
		return party.ErrNotLeader
	}
	if _, inside := g.byGroup[grp.ID]; inside {
		return ErrAlreadyInside
	}
	for _, m := range grp.Members {
		if _, inside := g.byMember[m]; inside {
			return ErrAlreadyInside
		}
	}
	if g.requesting[grp.ID] {
		return ErrEntryPending
	}

	lo, hi := def.LevelLimit.Min, def.LevelLimit.Max
	if lo <= 0 {
		lo = 1
	}
	if hi <= 0 {
		hi = session.MaxLevel
	}
	var entering []uuid.UUID
	for _, m := range grp.Members {
		if !g.dir.IsOnline(m) {
			continue
		}
		rec, ok := g.levels.Get(m)
		if !ok {
			return fmt.Errorf("%w: %s", session.ErrNotResident, m)
		}
		if rec.Level < lo || rec.Level > hi {
			g.groups.Broadcast(caller, fmt.Sprintf("[Dungeon] %s does not meet the level limit (%d-%d).", g.name(m), lo, hi))
			return fmt.Errorf("%w: %s is level %d, needs %d-%d", ErrLevelRestricted, m, rec.Level, lo, hi)
		}
		if left := g.cooldowns.Remaining(m, cooldown.PurposeDungeon); left > 0 {
			mins := int(left/time.Minute) + 1
			g.groups.Broadcast(caller, fmt.Sprintf("[Dungeon] %s is on dungeon cooldown (%d min).", g.name(m), mins))
			return fmt.Errorf("%w: %s has %s left", ErrMemberOnCooldown, m, left.Round(time.Second))
		}
		entering = append(entering, m)
	}

	display := def.DisplayName
	if display == "" {
		display = dungeonID
	}
	g.groups.Broadcast(caller, fmt.Sprintf("[Dungeon] Entering %s!", display))

	g.requesting[grp.ID] = true
	var (
		view models.InstanceView
		err  error
	)
	g.sched.RunOnWorkerThenPrimary(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		view, err = g.prov.RequestInstance(ctx, dungeonID, entering)
	}, func() {
		delete(g.requesting, grp.ID)
		if err != nil {
			log.Printf("ERROR: Gate: failed to provision dungeon %s for group %s: %v", dungeonID, grp.ID, err)
			g.groups.Broadcast(caller, "[Dungeon] Failed to create the dungeon instance.")
			if done != nil {
				done(models.InstanceView{}, err)
			}
			return
		}
		opened, ok := g.open(grp.ID, view, entering)
		if !ok {
			log.Printf("WARNING: Gate: instance %s for group %s not opened, no entrant is still online and grouped", view.ID, grp.ID)
			if done != nil {
				done(models.InstanceView{}, ErrEntrantsGone)
			}
			return
		}
		log.Printf("INFO: Gate: group %s entered dungeon %s (instance %s on %s)", grp.ID, dungeonID, view.ID, view.Host)
		if done != nil {
			done(opened, nil)
		}
	})
	return nil
}

// open records the instance for the entrants that are still online and in
// the group. It reports false, recording nothing, when none are.
func (g *Gate) open(groupID uuid.UUID, view models.InstanceView, members []uuid.UUID) (models.InstanceView, bool) {
	inst := &instance{view: view, group: groupID, members: make(map[uuid.UUID]bool, len(members))}
	inst.view.Members = make([]string, 0, len(members))
	for _, m := range members {
		if grp, ok := g.groups.GroupOf(m); !ok || grp.ID != groupID || !g.dir.IsOnline(m) {
			continue
		}
		inst.members[m] = true
		g.byMember[m] = inst
		g.cooldowns.TrySet(m, cooldown.PurposeDungeon, g.cooldown)
		inst.view.Members = append(inst.view.Members, m.String())
	}
	if len(inst.members) == 0 {
		return models.InstanceView{}, false
	}
	g.instances[view.ID] = inst
	g.byGroup[groupID] = inst
	return inst.view, true
}

// Exit takes member out of its instance. The instance closes when the group
// leader leaves or nobody is left; closed reports that.
func (g *Gate) Exit(member uuid.UUID) (closed bool, err error) {
	inst, ok := g.byMember[member]
	if !ok {
		return false, ErrNotInside
	}
	leaderLeft := false
	if grp, ok := g.groups.GroupOf(member); ok && grp.Leader == member {
		leaderLeft = true
	}
	delete(inst.members, member)
	delete(g.byMember, member)

	if leaderLeft || len(inst.members) == 0 {
		g.close(inst)
		return true, nil
	}
	return false, nil
}

func (g *Gate) close(inst *instance) {
	for m := range inst.members {
		delete(g.byMember, m)
	}
	delete(g.instances, inst.view.ID)
	delete(g.byGroup, inst.group)
	log.Printf("INFO: Gate: closed dungeon instance %s", inst.view.ID)
}

// InstanceOf returns the instance member is in.
func (g *Gate) InstanceOf(member uuid.UUID) (models.InstanceView, bool) {
	inst, ok := g.byMember[member]
	if !ok {
		return models.InstanceView{}, false
	}
	return inst.view, true
}

// Instances returns the number of open instances.
func (g *Gate) Instances() int { return len(g.instances) }

func (g *Gate) name(id uuid.UUID) string {
	if h, ok := g.dir.Lookup(id); ok {
		return h.Name()
	}
	return id.String()
}
