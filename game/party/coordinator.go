// game/party/coordinator.go
package party

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/google/uuid"
)

// Refusals. All of them are expected, user-facing outcomes.
var (
	ErrAlreadyGrouped = errors.New("already in a group")
	ErrNotGrouped     = errors.New("not in a group")
	ErrNotLeader      = errors.New("not the group leader")
	ErrNotMember      = errors.New("not a member of this group")
	ErrGroupFull      = errors.New("group is full")
	ErrNoSuchInvite   = errors.New("no such invite")
	ErrExpired        = errors.New("invite expired")
	ErrLeaderChanged  = errors.New("inviter no longer leads a group")
	ErrSelfInvite     = errors.New("cannot invite yourself")
	ErrSelfTarget     = errors.New("cannot target yourself")
)

// Defaults.
const (
	DefaultMaxSize   = 4
	DefaultInviteTTL = 60 * time.Second
)

// Config holds the tunables that reload can change.
type Config struct {
	MaxSize   int
	InviteTTL time.Duration
}

// ExperienceSink applies experience to a player and reports a level-up.
type ExperienceSink interface {
	ApplyExperience(id uuid.UUID, amount float64) bool
}

// Ledger is the read side of the damage tracker.
type Ledger interface {
	Attackers(target uuid.UUID) []uuid.UUID
	ResolveRecipient(target uuid.UUID) (uuid.UUID, bool)
}

// Eligibility decides whether a member shares a kill on target.
type Eligibility func(member, target uuid.UUID) bool

// Award is one experience payout.
type Award struct {
	Recipient  uuid.UUID
	Amount     float64
	LevelledUp bool
}

type group struct {
	id      uuid.UUID
	leader  uuid.UUID
	members []uuid.UUID // join order
}

func (g *group) indexOf(id uuid.UUID) int {
	for i, m := range g.members {
		if m == id {
			return i
		}
	}
	return -1
}

// Snapshot is a copy of a group's state.
type Snapshot struct {
	ID      uuid.UUID
	Leader  uuid.UUID
	Members []uuid.UUID
}

func (s Snapshot) Size() int { return len(s.Members) }

func (s Snapshot) Has(id uuid.UUID) bool {
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

type invite struct {
	inviter uuid.UUID
	expires time.Time
}

// Coordinator owns every group and pending invite. It is not safe for
// concurrent use; call it from the primary context only.
type Coordinator struct {
	cfg      Config
	groups   map[uuid.UUID]*group
	memberOf map[uuid.UUID]*group
	invites  map[uuid.UUID][]invite // keyed by invitee, insertion order
	chat     map[uuid.UUID]bool

	exp      ExperienceSink
	ledger   Ledger
	dir      presence.Directory
	eligible Eligibility
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the wall clock used for invite expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithEligibility replaces the default "member is online" policy.
func WithEligibility(e Eligibility) Option {
	return func(c *Coordinator) { c.eligible = e }
}

// NewCoordinator wires a Coordinator to its collaborators.
func NewCoordinator(cfg Config, exp ExperienceSink, ledger Ledger, dir presence.Directory, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      normalize(cfg),
		groups:   make(map[uuid.UUID]*group),
		memberOf: make(map[uuid.UUID]*group),
		invites:  make(map[uuid.UUID][]invite),
		chat:     make(map[uuid.UUID]bool),
		exp:      exp,
		ledger:   ledger,
		dir:      dir,
		now:      time.Now,
	}
	c.eligible = func(member, _ uuid.UUID) bool { return c.dir.IsOnline(member) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalize(cfg Config) Config {
	if cfg.MaxSize < 2 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}
	return cfg
}

// SetConfig applies reloaded settings. Existing groups above a smaller
// limit keep their members but accept no new ones.
func (c *Coordinator) SetConfig(cfg Config) { c.cfg = normalize(cfg) }

// Config returns the active settings.
func (c *Coordinator) Config() Config { return c.cfg }

func (c *Coordinator) snapshot(g *group) Snapshot {
	return Snapshot{ID: g.id, Leader: g.leader, Members: append([]uuid.UUID(nil), g.members...)}
}

// Create starts a single-member group led by leader.
func (c *Coordinator) Create(leader uuid.UUID) (Snapshot, error) {
	if _, ok := c.memberOf[leader]; ok {
		return Snapshot{}, ErrAlreadyGrouped
	}
	g := &group{id: uuid.New(), leader: leader, members: []uuid.UUID{leader}}
	c.groups[g.id] = g
	c.memberOf[leader] = g
	return c.snapshot(g), nil
}

// GroupOf returns the group member belongs to.
func (c *Coordinator) GroupOf(member uuid.UUID) (Snapshot, bool) {
	g, ok := c.memberOf[member]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshot(g), true
}

// Groups returns the number of live groups.
func (c *Coordinator) Groups() int { return len(c.groups) }

// Invite records an invite from inviter to invitee, creating a group for
// the inviter if it has none.
func (c *Coordinator) Invite(inviter, invitee uuid.UUID) error {
	if inviter == invitee {
		return ErrSelfInvite
	}
	if _, ok := c.memberOf[invitee]; ok {
		return ErrAlreadyGrouped
	}
	g, ok := c.memberOf[inviter]
	if !ok {
		if _, err := c.Create(inviter); err != nil {
			return err
		}
		g = c.memberOf[inviter]
	}
	if g.leader != inviter {
		return ErrNotLeader
	}
	if len(g.members) >= c.cfg.MaxSize {
		return ErrGroupFull
	}

	expires := c.now().Add(c.cfg.InviteTTL)
	list := c.invites[invitee]
	for i := range list {
		if list[i].inviter == inviter {
			list[i].expires = expires
			return nil
		}
	}
	c.invites[invitee] = append(list, invite{inviter: inviter, expires: expires})
	return nil
}

func (c *Coordinator) live(inv invite) bool { return c.now().Before(inv.expires) }

func (c *Coordinator) dropInvite(invitee, inviter uuid.UUID) {
	list := c.invites[invitee]
	for i := range list {
		if list[i].inviter == inviter {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.invites, invitee)
		return
	}
	c.invites[invitee] = list
}

// PendingInvites lists inviters with a live invite for invitee.
func (c *Coordinator) PendingInvites(invitee uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, inv := range c.invites[invitee] {
		if c.live(inv) {
			out = append(out, inv.inviter)
		}
	}
	return out
}

// Accept joins invitee to the inviter's group. With no inviter given, the
// first live invite in the order they were sent is used.
func (c *Coordinator) Accept(invitee uuid.UUID, inviter uuid.NullUUID) (Snapshot, error) {
	list := c.invites[invitee]
	if len(list) == 0 {
		return Snapshot{}, ErrNoSuchInvite
	}

	var chosen invite
	if inviter.Valid {
		found := false
		for _, inv := range list {
			if inv.inviter == inviter.UUID {
				chosen, found = inv, true
				break
			}
		}
		if !found {
			return Snapshot{}, ErrNoSuchInvite
		}
		if !c.live(chosen) {
			c.dropInvite(invitee, chosen.inviter)
			return Snapshot{}, ErrExpired
		}
	} else {
		found := false
		for _, inv := range list {
			if c.live(inv) {
				chosen, found = inv, true
				break
			}
		}
		if !found {
			delete(c.invites, invitee)
			return Snapshot{}, ErrExpired
		}
	}

	if _, ok := c.memberOf[invitee]; ok {
		return Snapshot{}, ErrAlreadyGrouped
	}
	g, ok := c.memberOf[chosen.inviter]
	if !ok || g.leader != chosen.inviter {
		c.dropInvite(invitee, chosen.inviter)
		return Snapshot{}, ErrLeaderChanged
	}
	if len(g.members) >= c.cfg.MaxSize {
		c.dropInvite(invitee, chosen.inviter)
		return Snapshot{}, ErrGroupFull
	}

	g.members = append(g.members, invitee)
	c.memberOf[invitee] = g
	delete(c.invites, invitee)
	return c.snapshot(g), nil
}

// Deny discards the invite from inviter, or every invite when inviter is
// absent. It returns how many live invites were discarded.
func (c *Coordinator) Deny(invitee uuid.UUID, inviter uuid.NullUUID) (int, error) {
	list := c.invites[invitee]
	if inviter.Valid {
		for _, inv := range list {
			if inv.inviter == inviter.UUID {
				c.dropInvite(invitee, inv.inviter)
				if !c.live(inv) {
					return 0, ErrNoSuchInvite
				}
				return 1, nil
			}
		}
		return 0, ErrNoSuchInvite
	}

	n := 0
	for _, inv := range list {
		if c.live(inv) {
			n++
		}
	}
	delete(c.invites, invitee)
	if n == 0 {
		return 0, ErrNoSuchInvite
	}
	return n, nil
}

// removeMember takes id out of g, hands leadership to the earliest-joined
// remaining member and destroys g when it empties.
func (c *Coordinator) removeMember(g *group, id uuid.UUID) (destroyed bool) {
	if i := g.indexOf(id); i >= 0 {
		g.members = append(g.members[:i], g.members[i+1:]...)
	}
	delete(c.memberOf, id)
	delete(c.chat, id)

	if len(g.members) == 0 {
		delete(c.groups, g.id)
		return true
	}
	if g.leader == id {
		g.leader = g.members[0]
	}
	return false
}

// Leave removes member from its group. The returned snapshot is the group
// after the departure; destroyed reports that it no longer exists.
func (c *Coordinator) Leave(member uuid.UUID) (after Snapshot, destroyed bool, err error) {
	g, ok := c.memberOf[member]
	if !ok {
		return Snapshot{}, false, ErrNotGrouped
	}
	destroyed = c.removeMember(g, member)
	return c.snapshot(g), destroyed, nil
}

func (c *Coordinator) leaderGroup(leader uuid.UUID) (*group, error) {
	g, ok := c.memberOf[leader]
	if !ok || g.leader != leader {
		return nil, ErrNotLeader
	}
	return g, nil
}

// Kick removes target from the leader's group.
func (c *Coordinator) Kick(leader, target uuid.UUID) error {
	g, err := c.leaderGroup(leader)
	if err != nil {
		return err
	}
	if target == leader {
		return ErrSelfTarget
	}
	if c.memberOf[target] != g {
		return ErrNotMember
	}
	c.removeMember(g, target)
	return nil
}

// Promote hands leadership to target.
func (c *Coordinator) Promote(leader, target uuid.UUID) error {
	g, err := c.leaderGroup(leader)
	if err != nil {
		return err
	}
	if c.memberOf[target] != g {
		return ErrNotMember
	}
	g.leader = target
	return nil
}

// RouteMessage sends text to every reachable member of sender's group and
// returns how many received it.
func (c *Coordinator) RouteMessage(sender uuid.UUID, text string) (int, error) {
	g, ok := c.memberOf[sender]
	if !ok {
		return 0, ErrNotGrouped
	}
	name := sender.String()[:8]
	if h, ok := c.dir.Lookup(sender); ok {
		name = h.Name()
	}
	line := fmt.Sprintf("[Party] %s: %s", name, text)

	delivered := 0
	for _, m := range g.members {
		if h, ok := c.dir.Lookup(m); ok {
			h.SendMessage(line)
			delivered++
		}
	}
	return delivered, nil
}

// Broadcast sends a system line to every reachable member of the group id belongs to.
func (c *Coordinator) Broadcast(member uuid.UUID, text string) int {
	g, ok := c.memberOf[member]
	if !ok {
		return 0
	}
	n := 0
	for _, m := range g.members {
		if h, ok := c.dir.Lookup(m); ok {
			h.SendMessage(text)
			n++
		}
	}
	return n
}

// ToggleChat flips whether member's plain chat goes to the party.
func (c *Coordinator) ToggleChat(member uuid.UUID) (bool, error) {
	if _, ok := c.memberOf[member]; !ok {
		return false, ErrNotGrouped
	}
	c.chat[member] = !c.chat[member]
	if !c.chat[member] {
		delete(c.chat, member)
		return false, nil
	}
	return true, nil
}

// ChatToggled reports whether member's plain chat goes to the party.
func (c *Coordinator) ChatToggled(member uuid.UUID) bool { return c.chat[member] }

// DistributeExperience pays out total for a kill on target. The group of
// the first grouped attacker (in first-hit order) splits it evenly among
// its eligible members; otherwise the top dealer receives all of it.
func (c *Coordinator) DistributeExperience(target uuid.UUID, total float64) []Award {
	if total <= 0 {
		return nil
	}
	for _, attacker := range c.ledger.Attackers(target) {
		g, ok := c.memberOf[attacker]
		if !ok {
			continue
		}
		var eligible []uuid.UUID
		for _, m := range g.members {
			if c.eligible(m, target) {
				eligible = append(eligible, m)
			}
		}
		if len(eligible) == 0 {
			break
		}
		share := total / float64(len(eligible))
		awards := make([]Award, 0, len(eligible))
		for _, m := range eligible {
			awards = append(awards, Award{Recipient: m, Amount: share, LevelledUp: c.exp.ApplyExperience(m, share)})
		}
		return awards
	}

	top, ok := c.ledger.ResolveRecipient(target)
	if !ok {
		return nil
	}
	return []Award{{Recipient: top, Amount: total, LevelledUp: c.exp.ApplyExperience(top, total)}}
}

// ResolveLootRecipient returns the top dealer when they are still
// reachable, else fallback.
func (c *Coordinator) ResolveLootRecipient(target, fallback uuid.UUID) uuid.UUID {
	if top, ok := c.ledger.ResolveRecipient(target); ok && c.dir.IsOnline(top) {
		return top
	}
	return fallback
}

// SweepInvites drops expired invites and returns how many were removed.
func (c *Coordinator) SweepInvites() int {
	removed := 0
	for invitee, list := range c.invites {
		kept := list[:0]
		for _, inv := range list {
			if c.live(inv) {
				kept = append(kept, inv)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(c.invites, invitee)
		} else {
			c.invites[invitee] = kept
		}
	}
	return removed
}
