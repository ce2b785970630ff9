// game/api/groups.go
package api

import (
	"context"
	"net/http"

	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/service"
	"github.com/Ftotnem/RPG-SERVICES/shared/api"
	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// GroupRequest covers every group command. Which fields matter depends on
// the command: Actor is always the player issuing it.
type GroupRequest struct {
	Actor  string `json:"actor"`
	Target string `json:"target,omitempty"` // invitee, kicked or promoted member, or the inviter for accept/deny
	Text   string `json:"text,omitempty"`
}

type groupResponse struct {
	Group     *models.GroupView `json:"group,omitempty"`
	Destroyed bool              `json:"destroyed,omitempty"`
	Denied    int               `json:"denied,omitempty"`
	Delivered int               `json:"delivered,omitempty"`
	ChatOn    *bool             `json:"partyChat,omitempty"`
}

// groupCommand decodes a GroupRequest and runs fn on the primary context.
func (gah *GameAPIHandlers) groupCommand(w http.ResponseWriter, r *http.Request, needTarget bool,
	fn func(actor uuid.UUID, target uuid.NullUUID, text string) (groupResponse, error)) {
	var req GroupRequest
	if !decode(w, r, &req) {
		return
	}
	actor, ok := parseUUID(w, "actor", req.Actor)
	if !ok {
		return
	}
	target, ok := parseOptionalUUID(w, "target", req.Target)
	if !ok {
		return
	}
	if needTarget && !target.Valid {
		api.WriteBadRequest(w, "target is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var resp groupResponse
	var err error
	if !gah.call(ctx, w, func() { resp, err = fn(actor, target, req.Text) }) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (gah *GameAPIHandlers) view(s party.Snapshot) *models.GroupView {
	v := gah.GameService.GroupView(s)
	return &v
}

// HandleCreateGroup starts a group led by the actor.
// POST /groups
func (gah *GameAPIHandlers) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, _ uuid.NullUUID, _ string) (groupResponse, error) {
		s, err := gah.GameService.CreateGroup(actor)
		if err != nil {
			return groupResponse{}, err
		}
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandleInvite invites the target into the actor's group.
// POST /groups/invite
func (gah *GameAPIHandlers) HandleInvite(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, true, func(actor uuid.UUID, target uuid.NullUUID, _ string) (groupResponse, error) {
		if err := gah.GameService.Invite(actor, target.UUID); err != nil {
			return groupResponse{}, err
		}
		s, _ := gah.GameService.GroupOf(actor)
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandleAccept accepts the invite from target, or the oldest live one.
// POST /groups/accept
func (gah *GameAPIHandlers) HandleAccept(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, inviter uuid.NullUUID, _ string) (groupResponse, error) {
		s, err := gah.GameService.Accept(actor, inviter)
		if err != nil {
			return groupResponse{}, err
		}
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandleDeny refuses the invite from target, or all of them.
// POST /groups/deny
func (gah *GameAPIHandlers) HandleDeny(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, inviter uuid.NullUUID, _ string) (groupResponse, error) {
		n, err := gah.GameService.Deny(actor, inviter)
		return groupResponse{Denied: n}, err
	})
}

// HandleLeave takes the actor out of its group.
// POST /groups/leave
func (gah *GameAPIHandlers) HandleLeave(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, _ uuid.NullUUID, _ string) (groupResponse, error) {
		s, destroyed, err := gah.GameService.Leave(actor)
		if err != nil {
			return groupResponse{}, err
		}
		if destroyed {
			return groupResponse{Destroyed: true}, nil
		}
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandleKick removes the target from the actor's group.
// POST /groups/kick
func (gah *GameAPIHandlers) HandleKick(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, true, func(actor uuid.UUID, target uuid.NullUUID, _ string) (groupResponse, error) {
		if err := gah.GameService.Kick(actor, target.UUID); err != nil {
			return groupResponse{}, err
		}
		s, _ := gah.GameService.GroupOf(actor)
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandlePromote hands leadership to the target.
// POST /groups/promote
func (gah *GameAPIHandlers) HandlePromote(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, true, func(actor uuid.UUID, target uuid.NullUUID, _ string) (groupResponse, error) {
		if err := gah.GameService.Promote(actor, target.UUID); err != nil {
			return groupResponse{}, err
		}
		s, _ := gah.GameService.GroupOf(actor)
		return groupResponse{Group: gah.view(s)}, nil
	})
}

// HandleGroupChat sends text to the actor's group.
// POST /groups/chat
func (gah *GameAPIHandlers) HandleGroupChat(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, _ uuid.NullUUID, text string) (groupResponse, error) {
		n, err := gah.GameService.GroupChat(actor, text)
		return groupResponse{Delivered: n}, err
	})
}

// HandleToggleChat flips party chat mode for the actor.
// POST /groups/chat-toggle
func (gah *GameAPIHandlers) HandleToggleChat(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, _ uuid.NullUUID, _ string) (groupResponse, error) {
		on, err := gah.GameService.ToggleChat(actor)
		if err != nil {
			return groupResponse{}, err
		}
		return groupResponse{ChatOn: &on}, nil
	})
}

// HandleGetGroup returns the group a player belongs to.
// GET /groups/member/{uuid}
func (gah *GameAPIHandlers) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var view *models.GroupView
	if !gah.call(ctx, w, func() {
		if s, ok := gah.GameService.GroupOf(id); ok {
			view = gah.view(s)
		}
	}) {
		return
	}
	if view == nil {
		writeServiceError(w, party.ErrNotGrouped)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// HandleListInvites lists live invites for a player.
// GET /players/{uuid}/invites
func (gah *GameAPIHandlers) HandleListInvites(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var inviters []string
	if !gah.call(ctx, w, func() {
		for _, inv := range gah.GameService.PendingInvites(id) {
			inviters = append(inviters, inv.String())
		}
	}) {
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string][]string{"inviters": inviters})
}

// --- Dungeons ---

// HandleEnterDungeon requests an instance for the actor's group and waits
// for the host to create it.
// POST /dungeons/{dungeon}/enter
func (gah *GameAPIHandlers) HandleEnterDungeon(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !decode(w, r, &req) {
		return
	}
	caller, ok := parseUUID(w, "actor", req.Actor)
	if !ok {
		return
	}
	dungeonID := mux.Vars(r)["dungeon"]
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	type result struct {
		view models.InstanceView
		err  error
	}
	opened := make(chan result, 1)
	var err error
	if !gah.call(ctx, w, func() {
		err = gah.GameService.EnterDungeon(caller, dungeonID, func(v models.InstanceView, err error) {
			opened <- result{v, err}
		})
	}) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, ok := wait(ctx, w, opened)
	if !ok {
		return
	}
	if res.err != nil {
		api.WriteErrorReason(w, http.StatusBadGateway, "provision_failed", res.err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, res.view)
}

// HandleExitDungeon takes the actor out of its instance.
// POST /dungeons/exit
func (gah *GameAPIHandlers) HandleExitDungeon(w http.ResponseWriter, r *http.Request) {
	gah.groupCommand(w, r, false, func(actor uuid.UUID, _ uuid.NullUUID, _ string) (groupResponse, error) {
		closed, err := gah.GameService.ExitDungeon(actor)
		return groupResponse{Destroyed: closed}, err
	})
}

// HandleGetInstance returns the instance a player is in.
// GET /players/{uuid}/instance
func (gah *GameAPIHandlers) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var view models.InstanceView
	var inside bool
	if !gah.call(ctx, w, func() { view, inside = gah.GameService.Instance(id) }) {
		return
	}
	if !inside {
		api.WriteNotFound(w, "Player is not in a dungeon")
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// --- Admin ---

// HandleReload re-reads the policy file.
// POST /admin/reload
func (gah *GameAPIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	type result struct {
		tables *policy.Tables
		err    error
	}
	done := make(chan result, 1)
	if !gah.call(ctx, w, func() {
		gah.GameService.Reload(func(t *policy.Tables, err error) { done <- result{t, err} })
	}) {
		return
	}
	res, ok := wait(ctx, w, done)
	if !ok {
		return
	}
	if res.err != nil {
		writeServiceError(w, res.err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int{
		"classes":  len(res.tables.Classes),
		"mobs":     len(res.tables.MobExperience),
		"dungeons": len(res.tables.Dungeons),
	})
}

// HandleGetSession returns the admin view of a resident session.
// GET /admin/sessions/{uuid}
func (gah *GameAPIHandlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var view service.SessionView
	var err error
	if !gah.call(ctx, w, func() { view, err = gah.GameService.Session(id) }) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// HandleSaveSession writes a resident session now.
// POST /admin/sessions/{uuid}/save
func (gah *GameAPIHandlers) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	saved := make(chan error, 1)
	var err error
	if !gah.call(ctx, w, func() {
		err = gah.GameService.SaveSession(id, func(err error) { saved <- err })
	}) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err, ok = wait(ctx, w, saved); !ok {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session saved", "uuid": id.String()})
}
