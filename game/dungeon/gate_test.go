package dungeon

import (
	"context"
	"errors"
	"testing"
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

type levels map[uuid.UUID]*session.Record

func (l levels) Get(id uuid.UUID) (*session.Record, bool) {
	rec, ok := l[id]
	return rec, ok
}

type fakeProvisioner struct {
	calls   int
	members []uuid.UUID
	err     error
}

func (p *fakeProvisioner) RequestInstance(_ context.Context, dungeonID string, members []uuid.UUID) (models.InstanceView, error) {
	p.calls++
	p.members = members
	if p.err != nil {
		return models.InstanceView{}, p.err
	}
	return models.InstanceView{ID: "inst-1", DungeonID: dungeonID, Host: "10.0.0.7:8090"}, nil
}

type noopMessenger struct{}

func (noopMessenger) Deliver(uuid.UUID, string) {}

type nopExp struct{}

func (nopExp) ApplyExperience(uuid.UUID, float64) bool { return false }

type noLedger struct{}

func (noLedger) Attackers(uuid.UUID) []uuid.UUID { return nil }
func (noLedger) ResolveRecipient(uuid.UUID) (uuid.UUID, bool) { return uuid.Nil, false }

type fixture struct {
	gate      *Gate
	sched     *sched.Manual
	groups    *party.Coordinator
	dir       *presence.Registry
	levels    levels
	cooldowns *cooldown.Registry
	prov      *fakeProvisioner
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sched:  sched.NewManual(),
		dir:    presence.NewRegistry(),
		levels: levels{},
		prov:   &fakeProvisioner{},
		now:    time.Unix(1_700_000_000, 0),
	}
	clock := func() time.Time { return f.now }
	f.cooldowns = cooldown.NewRegistry(cooldown.WithClock(clock))
	f.groups = party.NewCoordinator(party.Config{}, nopExp{}, noLedger{}, f.dir, party.WithClock(clock))
	tables := &policy.Tables{Dungeons: map[string]policy.Dungeon{
		"crypt": {DisplayName: "Crypt", LevelLimit: policy.LevelLimit{Min: 5, Max: 20}},
	}}
	f.gate = NewGate(f.sched, tables, f.groups, f.levels, f.dir, f.cooldowns, f.prov, Options{Cooldown: 30 * time.Minute})
	return f
}

func (f *fixture) player(name string, level int) uuid.UUID {
	id := uuid.New()
	f.dir.Add(presence.NewRemoteHandle(id, name, noopMessenger{}), "world")
	rec := session.NewRecord(id)
	rec.Level = level
	f.levels[id] = rec
	return id
}

func (f *fixture) group(t *testing.T, leader uuid.UUID, members ...uuid.UUID) {
	t.Helper()
	for _, m := range members {
		if err := f.groups.Invite(leader, m); err != nil {
			t.Fatal(err)
		}
		if _, err := f.groups.Accept(m, uuid.NullUUID{}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnterProvisionsAndStartsCooldown(t *testing.T) {
	f := newFixture(t)
	leader, member := f.player("L", 10), f.player("M", 12)
	f.group(t, leader, member)

	var got models.InstanceView
	if err := f.gate.Enter(leader, "crypt", func(v models.InstanceView, err error) {
		if err != nil {
			t.Errorf("provision: %v", err)
		}
		got = v
	}); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.gate.Enter(leader, "crypt", nil); !errors.Is(err, ErrEntryPending) {
		t.Fatalf("second Enter while pending = %v", err)
	}
	f.sched.Drain()

	if got.ID != "inst-1" || len(got.Members) != 2 {
		t.Fatalf("instance = %+v", got)
	}
	if f.cooldowns.Remaining(member, cooldown.PurposeDungeon) != 30*time.Minute {
		t.Fatal("entering members should be on cooldown")
	}
	if _, ok := f.gate.InstanceOf(member); !ok {
		t.Fatal("member not tracked in instance")
	}
	if err := f.gate.Enter(leader, "crypt", nil); !errors.Is(err, ErrAlreadyInside) {
		t.Fatalf("Enter while inside = %v", err)
	}
}

func TestEnterChecksInOrder(t *testing.T) {
	f := newFixture(t)
	leader, member, loner := f.player("L", 10), f.player("M", 3), f.player("X", 10)
	f.group(t, leader, member)

	if err := f.gate.Enter(leader, "volcano", nil); !errors.Is(err, ErrUnknownDungeon) {
		t.Fatalf("unknown dungeon = %v", err)
	}
	if err := f.gate.Enter(loner, "crypt", nil); !errors.Is(err, party.ErrNotGrouped) {
		t.Fatalf("ungrouped = %v", err)
	}
	if err := f.gate.Enter(member, "crypt", nil); !errors.Is(err, party.ErrNotLeader) {
		t.Fatalf("non-leader = %v", err)
	}
	if err := f.gate.Enter(leader, "crypt", nil); !errors.Is(err, ErrLevelRestricted) {
		t.Fatalf("level = %v", err)
	}

	f.levels[member].Level = 6
	f.cooldowns.TrySet(member, cooldown.PurposeDungeon, time.Minute)
	if err := f.gate.Enter(leader, "crypt", nil); !errors.Is(err, ErrMemberOnCooldown) {
		t.Fatalf("cooldown = %v", err)
	}
	if f.prov.calls != 0 {
		t.Fatal("refused entries must not reach the provisioner")
	}
}

func TestEnterSkipsOfflineMembers(t *testing.T) {
	f := newFixture(t)
	leader, away := f.player("L", 10), f.player("A", 1)
	f.group(t, leader, away)
	f.dir.Remove(away)

	if err := f.gate.Enter(leader, "crypt", nil); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	f.sched.Drain()
	if len(f.prov.members) != 1 || f.prov.members[0] != leader {
		t.Fatalf("provisioned members = %v", f.prov.members)
	}
}

func TestProvisionFailureLeavesNoInstance(t *testing.T) {
	f := newFixture(t)
	leader := f.player("L", 10)
	f.group(t, leader, f.player("M", 10))
	f.prov.err = errors.New("no hosts")

	var gotErr error
	_ = f.gate.Enter(leader, "crypt", func(_ models.InstanceView, err error) { gotErr = err })
	f.sched.Drain()

	if gotErr == nil || f.gate.Instances() != 0 {
		t.Fatalf("err=%v instances=%d", gotErr, f.gate.Instances())
	}
	if f.cooldowns.Active(leader, cooldown.PurposeDungeon) {
		t.Fatal("failed entry should not start a cooldown")
	}
	if err := f.gate.Enter(leader, "crypt", nil); err != nil {
		t.Fatalf("retry after failure = %v", err)
	}
}

func TestExitClosesWhenLeaderLeaves(t *testing.T) {
	f := newFixture(t)
	leader, a, b := f.player("L", 10), f.player("A", 10), f.player("B", 10)
	f.group(t, leader, a, b)
	_ = f.gate.Enter(leader, "crypt", nil)
	f.sched.Drain()

	closed, err := f.gate.Exit(a)
	if err != nil || closed {
		t.Fatalf("member exit = %v,%v", closed, err)
	}
	closed, err = f.gate.Exit(leader)
	if err != nil || !closed {
		t.Fatalf("leader exit = %v,%v", closed, err)
	}
	if _, ok := f.gate.InstanceOf(b); ok || f.gate.Instances() != 0 {
		t.Fatal("instance survived the leader leaving")
	}
	if _, err := f.gate.Exit(b); !errors.Is(err, ErrNotInside) {
		t.Fatalf("exit after close = %v", err)
	}
}

func TestEntrantsWhoLeftDuringProvisioningStayOut(t *testing.T) {
	f := newFixture(t)
	leader, quitter, leaver := f.player("L", 10), f.player("Q", 10), f.player("X", 10)
	f.group(t, leader, quitter, leaver)

	var got models.InstanceView
	if err := f.gate.Enter(leader, "crypt", func(v models.InstanceView, _ error) { got = v }); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	f.dir.Remove(quitter)
	if _, _, err := f.groups.Leave(leaver); err != nil {
		t.Fatal(err)
	}
	f.sched.Drain()

	if len(got.Members) != 1 || got.Members[0] != leader.String() {
		t.Fatalf("instance members = %v", got.Members)
	}
	for _, id := range []uuid.UUID{quitter, leaver} {
		if _, ok := f.gate.InstanceOf(id); ok {
			t.Fatalf("%s tracked inside after leaving", id)
		}
		if f.cooldowns.Active(id, cooldown.PurposeDungeon) {
			t.Fatalf("%s put on cooldown without entering", id)
		}
	}
}

func TestInstanceNotOpenedWhenEveryEntrantLeft(t *testing.T) {
	f := newFixture(t)
	leader := f.player("L", 10)
	f.group(t, leader, f.player("M", 10))

	var gotErr error
	_ = f.gate.Enter(leader, "crypt", func(_ models.InstanceView, err error) { gotErr = err })
	f.dir.Remove(leader)
	for _, id := range f.dir.Online() {
		f.dir.Remove(id)
	}
	f.sched.Drain()

	if !errors.Is(gotErr, ErrEntrantsGone) || f.gate.Instances() != 0 {
		t.Fatalf("err=%v instances=%d", gotErr, f.gate.Instances())
	}
}
