// game/updater/game_updater.go
package updater

import (
	"context"
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/combat"
	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
)

// OnlineRefresher extends the TTL of the cluster-wide online markers.
type OnlineRefresher interface {
	RefreshOnline(ctx context.Context, ids []uuid.UUID) error
}

// Intervals sets how often each maintenance task runs.
type Intervals struct {
	Regen       time.Duration
	LedgerSweep time.Duration
	InviteSweep time.Duration
	Heartbeat   time.Duration
}

// GameUpdater runs the periodic gameplay maintenance: mana regeneration,
// stale ledger, invite and cooldown sweeps, and the online heartbeat.
type GameUpdater struct {
	sched     sched.Scheduler
	cache     *session.Cache
	tracker   *combat.Tracker
	world     *combat.World
	groups    *party.Coordinator
	cooldowns *cooldown.Registry
	presence  *presence.Registry
	online    OnlineRefresher // optional
	intervals Intervals
	timeout   time.Duration

	stops []func()
}

// NewGameUpdater creates a new GameUpdater instance.
func NewGameUpdater(
	s sched.Scheduler,
	cache *session.Cache,
	tracker *combat.Tracker,
	world *combat.World,
	groups *party.Coordinator,
	cooldowns *cooldown.Registry,
	dir *presence.Registry,
	online OnlineRefresher,
	intervals Intervals,
) *GameUpdater {
	log.Println("GameUpdater: Initialized.")
	return &GameUpdater{
		sched:     s,
		cache:     cache,
		tracker:   tracker,
		world:     world,
		groups:    groups,
		cooldowns: cooldowns,
		presence:  dir,
		online:    online,
		intervals: intervals,
		timeout:   5 * time.Second,
	}
}

// Start schedules every task on the primary context.
func (gu *GameUpdater) Start() {
	log.Printf("Game Updater starting (regen %v, ledger sweep %v, invite sweep %v, heartbeat %v)",
		gu.intervals.Regen, gu.intervals.LedgerSweep, gu.intervals.InviteSweep, gu.intervals.Heartbeat)
	gu.stops = append(gu.stops,
		gu.sched.RunPeriodically(gu.intervals.Regen, gu.regen),
		gu.sched.RunPeriodically(gu.intervals.LedgerSweep, gu.sweepLedgers),
		gu.sched.RunPeriodically(gu.intervals.InviteSweep, gu.sweepInvites),
	)
	if gu.online != nil {
		gu.stops = append(gu.stops, gu.sched.RunPeriodically(gu.intervals.Heartbeat, gu.heartbeat))
	}
}

// Stop cancels every task.
func (gu *GameUpdater) Stop() {
	for _, stop := range gu.stops {
		stop()
	}
	gu.stops = nil
	log.Println("Game Updater shutting down.")
}

// regen only tops up connected players, so a quitting player's record stops
// changing once its final save is taken.
func (gu *GameUpdater) regen() {
	gu.cache.RegenTick(gu.presence.IsOnline)
}

// sweepLedgers drops ledgers of targets the host no longer has loaded.
// Ledgers of mobs that died or despawned are cleared by those events; this
// catches targets that went idle without either being reported.
func (gu *GameUpdater) sweepLedgers() {
	idle := gu.world.Prune()
	removed := gu.tracker.Sweep(gu.world.Exists)
	if removed > 0 || idle > 0 {
		log.Printf("INFO: GameUpdater: swept %d stale damage ledgers (%d idle targets).", removed, idle)
	}
}

// sweepInvites drops expired invites and cooldowns. Both expire lazily on
// read, so this only bounds memory.
func (gu *GameUpdater) sweepInvites() {
	invites := gu.groups.SweepInvites()
	cooldowns := gu.cooldowns.Sweep()
	if invites > 0 || cooldowns > 0 {
		log.Printf("INFO: GameUpdater: swept %d expired invites and %d expired cooldowns.", invites, cooldowns)
	}
}

func (gu *GameUpdater) heartbeat() {
	ids := gu.presence.Online()
	if len(ids) == 0 {
		return
	}
	gu.sched.RunOnWorker(func() {
		ctx, cancel := context.WithTimeout(context.Background(), gu.timeout)
		defer cancel()
		if err := gu.online.RefreshOnline(ctx, ids); err != nil {
			log.Printf("ERROR: GameUpdater: failed to refresh online markers for %d players: %v", len(ids), err)
		}
	})
}
