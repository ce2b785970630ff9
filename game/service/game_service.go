// game/service/game_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/combat"
	"github.com/Ftotnem/RPG-SERVICES/game/cooldown"
	"github.com/Ftotnem/RPG-SERVICES/game/dungeon"
	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/Ftotnem/RPG-SERVICES/game/progression"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/game/skill"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
)

// ErrNotOnline is returned for events about players this node does not host.
var ErrNotOnline = errors.New("player not online on this node")

// OnlineMirror publishes presence to the rest of the cluster. Calls block and
// are only made from workers.
type OnlineMirror interface {
	SetOnline(ctx context.Context, id uuid.UUID, sessionStart time.Time) error
	RemoveOnline(ctx context.Context, id uuid.UUID) error
}

// Deps bundles the components a GameService drives.
type Deps struct {
	Sched     sched.Scheduler
	Cache     *session.Cache
	Tracker   *combat.Tracker
	World     *combat.World
	Groups    *party.Coordinator
	Cooldowns *cooldown.Registry
	Classes   *progression.ClassBook
	Skills    *skill.Book
	Gate      *dungeon.Gate
	Presence  *presence.Registry
	Messenger presence.Messenger
	Online    OnlineMirror // optional
	Tables    *policy.Tables

	PolicyFile string
	IOTimeout  time.Duration
	Roll       combat.Roll
}

// GameService turns host events and player commands into calls on the
// gameplay components. Every method runs on the primary context; the HTTP
// layer gets there through sched.Await.
type GameService struct {
	sched     sched.Scheduler
	cache     *session.Cache
	tracker   *combat.Tracker
	world     *combat.World
	groups    *party.Coordinator
	cooldowns *cooldown.Registry
	classes   *progression.ClassBook
	skills    *skill.Book
	gate      *dungeon.Gate
	presence  *presence.Registry
	messenger presence.Messenger
	online    OnlineMirror
	tables    *policy.Tables

	policyFile string
	ioTimeout  time.Duration
	roll       combat.Roll
}

// NewGameService is the constructor for GameService.
func NewGameService(d Deps) *GameService {
	if d.IOTimeout <= 0 {
		d.IOTimeout = 10 * time.Second
	}
	if d.Roll == nil {
		d.Roll = combat.DefaultRoll
	}
	if d.World == nil {
		d.World = combat.NewWorld(0, nil)
	}
	return &GameService{
		sched:      d.Sched,
		cache:      d.Cache,
		tracker:    d.Tracker,
		world:      d.World,
		groups:     d.Groups,
		cooldowns:  d.Cooldowns,
		classes:    d.Classes,
		skills:     d.Skills,
		gate:       d.Gate,
		presence:   d.Presence,
		messenger:  d.Messenger,
		online:     d.Online,
		tables:     d.Tables,
		policyFile: d.PolicyFile,
		ioTimeout:  d.IOTimeout,
		roll:       d.Roll,
	}
}

// Tables returns the policy tables currently in force.
func (gs *GameService) Tables() *policy.Tables { return gs.tables }

func (gs *GameService) tell(id uuid.UUID, lines ...string) {
	h, ok := gs.presence.Lookup(id)
	if !ok {
		return
	}
	for _, line := range lines {
		h.SendMessage(line)
	}
}

func (gs *GameService) name(id uuid.UUID) string {
	if h, ok := gs.presence.Lookup(id); ok {
		return h.Name()
	}
	return id.String()
}

// resident returns the record of an online player.
func (gs *GameService) resident(id uuid.UUID) (*session.Record, error) {
	if !gs.presence.IsOnline(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotOnline, id)
	}
	rec, ok := gs.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, session.ErrNotResident)
	}
	return rec, nil
}

// PlayerJoin registers a connected player and starts loading their record.
// done, if set, receives the record on the primary context once it is resident.
func (gs *GameService) PlayerJoin(id uuid.UUID, name, world string, done func(*session.Record)) {
	gs.presence.Add(presence.NewRemoteHandle(id, name, gs.messenger), world)
	log.Printf("Service: Player %s (%s) joined in world %q.", id, name, world)

	if gs.online != nil {
		since := time.Now()
		gs.sched.RunOnWorker(func() {
			ctx, cancel := context.WithTimeout(context.Background(), gs.ioTimeout)
			defer cancel()
			if err := gs.online.SetOnline(ctx, id, since); err != nil {
				log.Printf("WARNING: Service: failed to mirror online status for %s: %v", id, err)
			}
		})
	}

	gs.cache.LoadAsync(id, func(rec *session.Record) {
		if gs.presence.IsOnline(id) {
			gs.tell(id, greeting(rec))
		}
		if done != nil {
			done(rec)
		}
	})
}

func greeting(rec *session.Record) string {
	switch {
	case rec.Degraded:
		return "[RPG] Your data could not be loaded. Progress made this session will not be saved."
	case rec.Fresh:
		return "[RPG] Welcome! Choose a class to begin your adventure."
	default:
		return fmt.Sprintf("[RPG] Your data has been loaded. (Lv.%d)", rec.Level)
	}
}

// PlayerQuit unregisters a player and writes their record back. The record
// is evicted only after a successful save and only if the player has not
// come back in the meantime; a failed save leaves it resident for the next
// sweep. done receives the save result on the primary context.
func (gs *GameService) PlayerQuit(id uuid.UUID, done func(error)) {
	finish := func(err error) {
		if done != nil {
			done(err)
		}
	}
	gs.presence.Remove(id)
	gs.leaveDungeon(id)
	if gs.online != nil {
		gs.sched.RunOnWorker(func() {
			ctx, cancel := context.WithTimeout(context.Background(), gs.ioTimeout)
			defer cancel()
			if err := gs.online.RemoveOnline(ctx, id); err != nil {
				log.Printf("WARNING: Service: failed to clear online status for %s: %v", id, err)
			}
		})
	}

	rec, ok := gs.cache.Get(id)
	if !ok {
		// A load still in flight leaves an offline record for the sweep to evict.
		log.Printf("Service: Player %s quit with no resident session.", id)
		finish(nil)
		return
	}
	if rec.Degraded {
		gs.cache.Discard(id)
		log.Printf("WARNING: Service: discarded degraded session for %s without saving.", id)
		finish(nil)
		return
	}
	err := gs.cache.SaveAsync(id, func(err error) {
		if err == nil && !gs.presence.IsOnline(id) && gs.cache.Evict(id) {
			log.Printf("Service: Player %s saved and evicted.", id)
		}
		finish(err)
	})
	if err != nil {
		finish(err)
	}
}

// leaveDungeon takes id out of its dungeon instance, if any.
func (gs *GameService) leaveDungeon(id uuid.UUID) {
	closed, err := gs.gate.Exit(id)
	switch {
	case errors.Is(err, dungeon.ErrNotInside):
	case err != nil:
		log.Printf("WARNING: Service: dungeon exit for %s failed: %v", id, err)
	case closed:
		log.Printf("Service: Dungeon instance of %s closed.", id)
	}
}

// DamageEvent is a hit reported by the game host.
type DamageEvent struct {
	Attacker       uuid.UUID
	Target         uuid.UUID
	TargetIsPlayer bool
	Raw            float64 // host-side damage before stats
	Multiplier     float64 // skill multiplier, 0 means 1
	TargetDefense  float64 // used for non-player targets
}

// EntityDamage resolves a hit from an online player and, for PvE hits,
// credits it to the target's damage ledger.
func (gs *GameService) EntityDamage(ev DamageEvent) (combat.Hit, error) {
	if ev.Raw < 0 {
		return combat.Hit{}, combat.ErrNegativeDamage
	}
	rec, err := gs.resident(ev.Attacker)
	if err != nil {
		return combat.Hit{}, err
	}
	mult := ev.Multiplier
	if mult <= 0 {
		mult = 1
	}
	attack := combat.Attack{
		Raw:        ev.Raw * mult,
		Power:      rec.Attack.Effective(),
		CritChance: rec.CritChance.Effective(),
		CritDamage: rec.CritDamage.Effective(),
	}
	defense := ev.TargetDefense
	if ev.TargetIsPlayer {
		defense = 0
		if victim, ok := gs.cache.Get(ev.Target); ok {
			defense = victim.Defense.Effective()
		}
	}
	hit := combat.Resolve(attack, defense, gs.roll)
	if !ev.TargetIsPlayer {
		gs.world.Seen(ev.Target)
		if err := gs.tracker.RecordDamage(ev.Target, ev.Attacker, hit.Amount); err != nil {
			return hit, err
		}
	}
	return hit, nil
}

// DeathEvent reports a mob dying on the host.
type DeathEvent struct {
	Target     uuid.UUID
	Killer     uuid.NullUUID
	MobType    string
	DroppedExp float64 // host-side experience when the mob type has no table entry
}

// DeathOutcome tells the host who earned what.
type DeathOutcome struct {
	Experience    float64       `json:"experience"`
	Awards        []party.Award `json:"awards"`
	LootRecipient uuid.NullUUID `json:"lootRecipient"`
}

// EntityDeath pays out experience for a kill, picks the loot recipient and
// clears the target's ledger.
func (gs *GameService) EntityDeath(ev DeathEvent) DeathOutcome {
	defer gs.forget(ev.Target)

	exp, ok := gs.tables.Experience(ev.MobType)
	if !ok {
		exp = ev.DroppedExp
	}
	out := DeathOutcome{Experience: exp}

	out.Awards = gs.groups.DistributeExperience(ev.Target, exp)
	if len(out.Awards) == 0 && ev.Killer.Valid && exp > 0 && gs.presence.IsOnline(ev.Killer.UUID) {
		killer := ev.Killer.UUID
		out.Awards = []party.Award{{Recipient: killer, Amount: exp, LevelledUp: gs.cache.ApplyExperience(killer, exp)}}
	}
	for _, a := range out.Awards {
		if a.LevelledUp {
			gs.onLevelUp(a.Recipient)
		}
	}

	fallback := uuid.Nil
	if ev.Killer.Valid {
		fallback = ev.Killer.UUID
	}
	if r := gs.groups.ResolveLootRecipient(ev.Target, fallback); r != uuid.Nil {
		out.LootRecipient = uuid.NullUUID{UUID: r, Valid: true}
	}
	return out
}

// EntityDespawn drops everything kept about a mob the host removed without a
// kill. No experience or loot is paid out.
func (gs *GameService) EntityDespawn(target uuid.UUID) {
	gs.forget(target)
}

func (gs *GameService) forget(target uuid.UUID) {
	gs.tracker.Clear(target)
	gs.world.Gone(target)
}

func (gs *GameService) onLevelUp(id uuid.UUID) {
	rec, ok := gs.cache.Get(id)
	if !ok {
		return
	}
	if !gs.classes.ApplyLevelStats(rec) {
		log.Printf("WARNING: Service: class %q of %s is not in the tables, stats unchanged.", rec.Role, id)
	}
	gs.tell(id, progression.LevelUpMessages(rec.Level)...)
	log.Printf("Service: Player %s reached level %d.", id, rec.Level)
	gs.saveQuietly(id)
}

func (gs *GameService) saveQuietly(id uuid.UUID) {
	err := gs.cache.SaveAsync(id, nil)
	if err != nil && !errors.Is(err, session.ErrDegraded) {
		log.Printf("WARNING: Service: could not schedule save for %s: %v", id, err)
	}
}

// CastSkill validates and applies a skill cast.
func (gs *GameService) CastSkill(id uuid.UUID, slot skill.Slot) (skill.Cast, error) {
	rec, err := gs.resident(id)
	if err != nil {
		return skill.Cast{}, err
	}
	return gs.skills.Cast(rec, slot)
}

// SelectClass gives a classless player their class and saves them.
func (gs *GameService) SelectClass(id uuid.UUID, classID string) (policy.Class, error) {
	rec, err := gs.resident(id)
	if err != nil {
		return policy.Class{}, err
	}
	class, err := gs.classes.Select(rec, classID)
	if err != nil {
		return policy.Class{}, err
	}
	gs.tell(id, fmt.Sprintf("[RPG] You are now a %s!", gs.classes.DisplayName(classID)))
	log.Printf("Service: Player %s selected class %s.", id, classID)
	gs.saveQuietly(id)
	return class, nil
}

// SetDamageSkin stores the player's damage skin choice.
func (gs *GameService) SetDamageSkin(id uuid.UUID, skin string) error {
	rec, err := gs.resident(id)
	if err != nil {
		return err
	}
	if skin == "" || skin == session.DefaultDamageSkin {
		rec.Extensions.Delete(session.ExtDamageSkin)
		return nil
	}
	return rec.Extensions.Set(session.ExtDamageSkin, skin)
}

// Reload re-reads the policy file on a worker and swaps the tables in on the
// primary context. A bad file leaves the current tables in force.
func (gs *GameService) Reload(done func(*policy.Tables, error)) {
	var (
		loaded *policy.Tables
		err    error
	)
	gs.sched.RunOnWorkerThenPrimary(func() {
		loaded, err = policy.Load(gs.policyFile)
	}, func() {
		if err != nil {
			log.Printf("ERROR: Service: policy reload failed, keeping current tables: %v", err)
		} else {
			gs.applyTables(loaded)
			log.Printf("INFO: Service: policy reloaded (%d classes, %d dungeons).", len(loaded.Classes), len(loaded.Dungeons))
		}
		if done != nil {
			done(loaded, err)
		}
	})
}

func (gs *GameService) applyTables(t *policy.Tables) {
	gs.tables = t
	gs.classes.SetTables(t)
	gs.skills.SetTables(t)
	gs.gate.SetTables(t)
	gs.cache.SetRegenRate(t.ManaRegen.RatePerTick)
	// Stats of online players follow the new per-level values right away.
	for _, id := range gs.cache.Resident() {
		if rec, ok := gs.cache.Get(id); ok && rec.Role.Assigned() {
			gs.classes.ApplyLevelStats(rec)
		}
	}
}

// SessionView is the admin view of a resident session.
type SessionView struct {
	Progression *models.Progression `json:"progression"`
	Online      bool                `json:"online"`
	Degraded    bool                `json:"degraded"`
	Group       string              `json:"group,omitempty"`
	DamageSkin  string              `json:"damageSkin"`
	Cooldowns   map[string]float64  `json:"cooldowns,omitempty"` // seconds left
}

// Session returns the admin view of a resident record.
func (gs *GameService) Session(id uuid.UUID) (SessionView, error) {
	snap, ok := gs.cache.Snapshot(id)
	if !ok {
		return SessionView{}, fmt.Errorf("%s: %w", id, session.ErrNotResident)
	}
	rec, _ := gs.cache.Get(id)
	v := SessionView{
		Progression: snap,
		Online:      gs.presence.IsOnline(id),
		Degraded:    rec.Degraded,
		DamageSkin:  rec.DamageSkin(),
	}
	if g, ok := gs.groups.GroupOf(id); ok {
		v.Group = g.ID.String()
	}
	if left := gs.cooldowns.Remaining(id, cooldown.PurposeDungeon); left > 0 {
		v.Cooldowns = map[string]float64{cooldown.PurposeDungeon: left.Seconds()}
	}
	return v, nil
}

// SaveSession writes a resident record now.
func (gs *GameService) SaveSession(id uuid.UUID, done func(error)) error {
	return gs.cache.SaveAsync(id, done)
}
