// game/service/commands.go
package service

import (
	"fmt"
	"log"

	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

// GroupView converts a snapshot for the API.
func (gs *GameService) GroupView(s party.Snapshot) models.GroupView {
	members := make([]string, len(s.Members))
	for i, m := range s.Members {
		members[i] = m.String()
	}
	return models.GroupView{
		ID:      s.ID.String(),
		Leader:  s.Leader.String(),
		Members: members,
		Size:    s.Size(),
		MaxSize: gs.groups.Config().MaxSize,
	}
}

// CreateGroup starts a group led by leader.
func (gs *GameService) CreateGroup(leader uuid.UUID) (party.Snapshot, error) {
	snap, err := gs.groups.Create(leader)
	if err != nil {
		return party.Snapshot{}, err
	}
	gs.tell(leader, "[Party] Party created.")
	return snap, nil
}

// GroupOf returns the group member belongs to.
func (gs *GameService) GroupOf(member uuid.UUID) (party.Snapshot, bool) {
	return gs.groups.GroupOf(member)
}

// Invite invites invitee to the inviter's group. Both must be online.
func (gs *GameService) Invite(inviter, invitee uuid.UUID) error {
	if !gs.presence.IsOnline(invitee) {
		return fmt.Errorf("%w: %s", ErrNotOnline, invitee)
	}
	if err := gs.groups.Invite(inviter, invitee); err != nil {
		return err
	}
	ttl := gs.groups.Config().InviteTTL
	gs.tell(inviter, fmt.Sprintf("[Party] Invited %s.", gs.name(invitee)))
	gs.tell(invitee, fmt.Sprintf("[Party] %s invited you to a party. Accept within %d seconds.", gs.name(inviter), int(ttl.Seconds())))
	return nil
}

// PendingInvites lists who has a live invite out for invitee.
func (gs *GameService) PendingInvites(invitee uuid.UUID) []uuid.UUID {
	return gs.groups.PendingInvites(invitee)
}

// Accept joins invitee to a group they were invited to.
func (gs *GameService) Accept(invitee uuid.UUID, inviter uuid.NullUUID) (party.Snapshot, error) {
	snap, err := gs.groups.Accept(invitee, inviter)
	if err != nil {
		return party.Snapshot{}, err
	}
	gs.groups.Broadcast(invitee, fmt.Sprintf("[Party] %s joined the party.", gs.name(invitee)))
	return snap, nil
}

// Deny refuses one or all pending invites.
func (gs *GameService) Deny(invitee uuid.UUID, inviter uuid.NullUUID) (int, error) {
	n, err := gs.groups.Deny(invitee, inviter)
	if err != nil {
		return 0, err
	}
	if inviter.Valid {
		gs.tell(inviter.UUID, fmt.Sprintf("[Party] %s declined your invite.", gs.name(invitee)))
	}
	return n, nil
}

// Leave takes member out of its group.
func (gs *GameService) Leave(member uuid.UUID) (party.Snapshot, bool, error) {
	before, grouped := gs.groups.GroupOf(member)
	if grouped {
		// Still a member here, so a leaving leader closes the instance.
		gs.leaveDungeon(member)
	}
	after, destroyed, err := gs.groups.Leave(member)
	if err != nil {
		return party.Snapshot{}, false, err
	}
	gs.tell(member, "[Party] You left the party.")
	if destroyed {
		log.Printf("Service: Group %s disbanded.", before.ID)
		return after, true, nil
	}
	msg := fmt.Sprintf("[Party] %s left the party.", gs.name(member))
	if before.Leader == member {
		msg += fmt.Sprintf(" %s is the new leader.", gs.name(after.Leader))
	}
	gs.broadcastTo(after, msg)
	return after, false, nil
}

// Kick removes target from the leader's group.
func (gs *GameService) Kick(leader, target uuid.UUID) error {
	if err := gs.groups.Kick(leader, target); err != nil {
		return err
	}
	gs.leaveDungeon(target)
	gs.tell(target, "[Party] You were removed from the party.")
	gs.groups.Broadcast(leader, fmt.Sprintf("[Party] %s was removed from the party.", gs.name(target)))
	return nil
}

// Promote hands leadership to target.
func (gs *GameService) Promote(leader, target uuid.UUID) error {
	if err := gs.groups.Promote(leader, target); err != nil {
		return err
	}
	gs.groups.Broadcast(target, fmt.Sprintf("[Party] %s is now the party leader.", gs.name(target)))
	return nil
}

// GroupChat sends text to sender's group.
func (gs *GameService) GroupChat(sender uuid.UUID, text string) (int, error) {
	return gs.groups.RouteMessage(sender, text)
}

// Chat handles a plain chat line. It reports whether the line went to the
// party instead of public chat.
func (gs *GameService) Chat(sender uuid.UUID, text string) (bool, error) {
	if !gs.groups.ChatToggled(sender) {
		return false, nil
	}
	if _, err := gs.groups.RouteMessage(sender, text); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleChat flips party chat mode for member.
func (gs *GameService) ToggleChat(member uuid.UUID) (bool, error) {
	on, err := gs.groups.ToggleChat(member)
	if err != nil {
		return false, err
	}
	if on {
		gs.tell(member, "[Party] Party chat enabled.")
	} else {
		gs.tell(member, "[Party] Party chat disabled.")
	}
	return on, nil
}

func (gs *GameService) broadcastTo(s party.Snapshot, text string) {
	for _, m := range s.Members {
		gs.tell(m, text)
	}
}

// EnterDungeon asks for a dungeon instance for the caller's group. Refusals
// come back directly; done receives the provisioning outcome.
func (gs *GameService) EnterDungeon(caller uuid.UUID, dungeonID string, done func(models.InstanceView, error)) error {
	return gs.gate.Enter(caller, dungeonID, done)
}

// ExitDungeon takes member out of its instance.
func (gs *GameService) ExitDungeon(member uuid.UUID) (bool, error) {
	return gs.gate.Exit(member)
}

// Instance returns the instance member is in.
func (gs *GameService) Instance(member uuid.UUID) (models.InstanceView, bool) {
	return gs.gate.InstanceOf(member)
}
