package party

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/combat"
	"github.com/Ftotnem/RPG-SERVICES/game/presence"
	"github.com/google/uuid"
)

type expSink struct {
	got map[uuid.UUID]float64
}

func (s *expSink) ApplyExperience(id uuid.UUID, amount float64) bool {
	if s.got == nil {
		s.got = make(map[uuid.UUID]float64)
	}
	s.got[id] += amount
	return false
}

type inbox struct {
	got map[uuid.UUID][]string
}

func (m *inbox) Deliver(id uuid.UUID, text string) {
	if m.got == nil {
		m.got = make(map[uuid.UUID][]string)
	}
	m.got[id] = append(m.got[id], text)
}

type fixture struct {
	c       *Coordinator
	tracker *combat.Tracker
	dir     *presence.Registry
	exp     *expSink
	inbox   *inbox
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tracker: combat.NewTracker(),
		dir:     presence.NewRegistry(),
		exp:     &expSink{},
		inbox:   &inbox{},
		now:     time.Unix(1_700_000_000, 0),
	}
	f.c = NewCoordinator(Config{MaxSize: 4, InviteTTL: 60 * time.Second}, f.exp, f.tracker, f.dir,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) online(name string) uuid.UUID {
	id := uuid.New()
	f.dir.Add(presence.NewRemoteHandle(id, name, f.inbox), "world")
	return id
}

func (f *fixture) join(t *testing.T, leader uuid.UUID, members ...uuid.UUID) {
	t.Helper()
	for _, m := range members {
		if err := f.c.Invite(leader, m); err != nil {
			t.Fatalf("Invite: %v", err)
		}
		if _, err := f.c.Accept(m, uuid.NullUUID{UUID: leader, Valid: true}); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}
}

func TestInviteAcceptJoinsGroup(t *testing.T) {
	f := newFixture(t)
	leader, guest := f.online("Alex"), f.online("Steve")

	if err := f.c.Invite(leader, guest); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if got := f.c.PendingInvites(guest); len(got) != 1 || got[0] != leader {
		t.Fatalf("PendingInvites = %v", got)
	}
	snap, err := f.c.Accept(guest, uuid.NullUUID{})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if snap.Leader != leader || snap.Size() != 2 || !snap.Has(guest) {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(f.c.PendingInvites(guest)) != 0 {
		t.Fatal("invites should be consumed on accept")
	}
}

func TestInviteRefusals(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.online("A"), f.online("B"), f.online("C")

	if err := f.c.Invite(a, a); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("self invite = %v", err)
	}
	f.join(t, a, b)
	if err := f.c.Invite(b, c); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("member invite = %v", err)
	}
	if err := f.c.Invite(c, b); !errors.Is(err, ErrAlreadyGrouped) {
		t.Fatalf("invite grouped player = %v", err)
	}
	if _, err := f.c.Create(a); !errors.Is(err, ErrAlreadyGrouped) {
		t.Fatalf("create while grouped = %v", err)
	}
}

func TestGroupFull(t *testing.T) {
	f := newFixture(t)
	leader := f.online("L")
	f.join(t, leader, f.online("1"), f.online("2"), f.online("3"))

	if err := f.c.Invite(leader, f.online("4")); !errors.Is(err, ErrGroupFull) {
		t.Fatalf("invite into full group = %v", err)
	}
}

func TestAcceptAfterTTLExpires(t *testing.T) {
	f := newFixture(t)
	leader, guest := f.online("L"), f.online("G")
	if err := f.c.Invite(leader, guest); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(60 * time.Second)
	_, err := f.c.Accept(guest, uuid.NullUUID{UUID: leader, Valid: true})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Accept after TTL = %v, want ErrExpired", err)
	}
	if _, ok := f.c.GroupOf(guest); ok {
		t.Fatal("expired accept joined a group")
	}
}

func TestAcceptAfterLeaderChange(t *testing.T) {
	f := newFixture(t)
	leader, member, guest := f.online("L"), f.online("M"), f.online("G")
	f.join(t, leader, member)
	if err := f.c.Invite(leader, guest); err != nil {
		t.Fatal(err)
	}
	if err := f.c.Promote(leader, member); err != nil {
		t.Fatal(err)
	}

	_, err := f.c.Accept(guest, uuid.NullUUID{UUID: leader, Valid: true})
	if !errors.Is(err, ErrLeaderChanged) {
		t.Fatalf("Accept = %v, want ErrLeaderChanged", err)
	}
}

func TestDeny(t *testing.T) {
	f := newFixture(t)
	a, b, guest := f.online("A"), f.online("B"), f.online("G")
	_ = f.c.Invite(a, guest)
	_ = f.c.Invite(b, guest)

	n, err := f.c.Deny(guest, uuid.NullUUID{UUID: a, Valid: true})
	if err != nil || n != 1 {
		t.Fatalf("Deny one = %d,%v", n, err)
	}
	if got := f.c.PendingInvites(guest); len(got) != 1 || got[0] != b {
		t.Fatalf("remaining invites = %v", got)
	}
	if n, err := f.c.Deny(guest, uuid.NullUUID{}); err != nil || n != 1 {
		t.Fatalf("Deny all = %d,%v", n, err)
	}
	if _, err := f.c.Deny(guest, uuid.NullUUID{}); !errors.Is(err, ErrNoSuchInvite) {
		t.Fatalf("Deny nothing = %v", err)
	}
}

func TestLeaderLeaveHandsOffToEarliestMember(t *testing.T) {
	f := newFixture(t)
	leader, second, third := f.online("L"), f.online("2"), f.online("3")
	f.join(t, leader, second, third)

	after, destroyed, err := f.c.Leave(leader)
	if err != nil || destroyed {
		t.Fatalf("Leave = %v,%v", destroyed, err)
	}
	if after.Leader != second {
		t.Fatalf("new leader = %v, want earliest-joined member", after.Leader)
	}
	if after.Size() != 2 {
		t.Fatalf("size = %d, want 2", after.Size())
	}
	if _, ok := f.c.GroupOf(leader); ok {
		t.Fatal("former leader still grouped")
	}
}

func TestLastMemberLeaveDestroysGroup(t *testing.T) {
	f := newFixture(t)
	solo := f.online("S")
	if _, err := f.c.Create(solo); err != nil {
		t.Fatal(err)
	}

	_, destroyed, err := f.c.Leave(solo)
	if err != nil || !destroyed {
		t.Fatalf("Leave = %v,%v", destroyed, err)
	}
	if _, ok := f.c.GroupOf(solo); ok || f.c.Groups() != 0 {
		t.Fatal("group survived its last member")
	}
	if _, _, err := f.c.Leave(solo); !errors.Is(err, ErrNotGrouped) {
		t.Fatalf("second Leave = %v", err)
	}
}

func TestKickAndPromote(t *testing.T) {
	f := newFixture(t)
	leader, member, outsider := f.online("L"), f.online("M"), f.online("O")
	f.join(t, leader, member)

	if err := f.c.Kick(member, leader); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("kick by member = %v", err)
	}
	if err := f.c.Kick(leader, leader); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("self kick = %v", err)
	}
	if err := f.c.Kick(leader, outsider); !errors.Is(err, ErrNotMember) {
		t.Fatalf("kick outsider = %v", err)
	}
	if err := f.c.Promote(leader, outsider); !errors.Is(err, ErrNotMember) {
		t.Fatalf("promote outsider = %v", err)
	}
	if err := f.c.Kick(leader, member); err != nil {
		t.Fatalf("kick = %v", err)
	}
	if _, ok := f.c.GroupOf(member); ok {
		t.Fatal("kicked member still grouped")
	}
}

func TestDistributeExperienceSplitsAmongEligible(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.online("A"), f.online("B"), f.online("C")
	f.join(t, a, b, c)
	mob := uuid.New()
	_ = f.tracker.RecordDamage(mob, a, 50)

	awards := f.c.DistributeExperience(mob, 90)
	if len(awards) != 3 {
		t.Fatalf("awards = %+v", awards)
	}
	for _, id := range []uuid.UUID{a, b, c} {
		if math.Abs(f.exp.got[id]-30) > 1e-9 {
			t.Fatalf("member got %v, want 30", f.exp.got[id])
		}
	}
}

func TestDistributeExperienceFallsBackToTopDealer(t *testing.T) {
	f := newFixture(t)
	a, b := f.online("A"), f.online("B")
	f.join(t, a, b)
	f.c.eligible = func(uuid.UUID, uuid.UUID) bool { return false }
	mob := uuid.New()
	_ = f.tracker.RecordDamage(mob, a, 10)
	_ = f.tracker.RecordDamage(mob, b, 40)

	awards := f.c.DistributeExperience(mob, 90)
	if len(awards) != 1 || awards[0].Recipient != b || awards[0].Amount != 90 {
		t.Fatalf("awards = %+v, want 90 to top dealer", awards)
	}
}

func TestDistributeExperienceUngroupedKiller(t *testing.T) {
	f := newFixture(t)
	a := f.online("A")
	mob := uuid.New()
	_ = f.tracker.RecordDamage(mob, a, 10)

	awards := f.c.DistributeExperience(mob, 25)
	if len(awards) != 1 || f.exp.got[a] != 25 {
		t.Fatalf("awards = %+v", awards)
	}
	if got := f.c.DistributeExperience(uuid.New(), 25); got != nil {
		t.Fatalf("untracked target produced awards %+v", got)
	}
}

func TestRouteMessageReachesOnlineMembers(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.online("Alex"), f.online("B"), f.online("C")
	f.join(t, a, b, c)
	f.dir.Remove(c)

	n, err := f.c.RouteMessage(a, "hi")
	if err != nil || n != 2 {
		t.Fatalf("RouteMessage = %d,%v", n, err)
	}
	if got := f.inbox.got[b]; len(got) != 1 || got[0] != "[Party] Alex: hi" {
		t.Fatalf("b received %v", got)
	}
	if len(f.inbox.got[c]) != 0 {
		t.Fatal("offline member received a message")
	}
	if _, err := f.c.RouteMessage(uuid.New(), "x"); !errors.Is(err, ErrNotGrouped) {
		t.Fatalf("ungrouped sender = %v", err)
	}
}

func TestResolveLootRecipient(t *testing.T) {
	f := newFixture(t)
	a, killer := f.online("A"), f.online("K")
	mob := uuid.New()
	_ = f.tracker.RecordDamage(mob, a, 100)

	if got := f.c.ResolveLootRecipient(mob, killer); got != a {
		t.Fatalf("loot went to %v, want top dealer", got)
	}
	f.dir.Remove(a)
	if got := f.c.ResolveLootRecipient(mob, killer); got != killer {
		t.Fatalf("loot went to %v, want fallback", got)
	}
}

func TestSweepInvitesAndChatToggle(t *testing.T) {
	f := newFixture(t)
	a, b, guest := f.online("A"), f.online("B"), f.online("G")
	_ = f.c.Invite(a, guest)
	f.now = f.now.Add(30 * time.Second)
	_ = f.c.Invite(b, guest)
	f.now = f.now.Add(45 * time.Second)

	if n := f.c.SweepInvites(); n != 1 {
		t.Fatalf("SweepInvites = %d, want 1", n)
	}
	if got := f.c.PendingInvites(guest); len(got) != 1 || got[0] != b {
		t.Fatalf("PendingInvites = %v", got)
	}

	if _, err := f.c.ToggleChat(guest); !errors.Is(err, ErrNotGrouped) {
		t.Fatalf("toggle ungrouped = %v", err)
	}
	on, _ := f.c.ToggleChat(a)
	if !on || !f.c.ChatToggled(a) {
		t.Fatal("toggle should enable party chat")
	}
	_, _, _ = f.c.Leave(a)
	if f.c.ChatToggled(a) {
		t.Fatal("chat toggle survived leaving")
	}
}
