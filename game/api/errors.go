// game/api/errors.go
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Ftotnem/RPG-SERVICES/game/combat"
	"github.com/Ftotnem/RPG-SERVICES/game/dungeon"
	"github.com/Ftotnem/RPG-SERVICES/game/party"
	"github.com/Ftotnem/RPG-SERVICES/game/policy"
	"github.com/Ftotnem/RPG-SERVICES/game/progression"
	"github.com/Ftotnem/RPG-SERVICES/game/service"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/game/skill"
	"github.com/Ftotnem/RPG-SERVICES/game/store"
	"github.com/Ftotnem/RPG-SERVICES/shared/api"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
)

type errorMapping struct {
	err    error
	status int
	reason string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{service.ErrNotOnline, http.StatusNotFound, "not_online"},
	{session.ErrNotResident, http.StatusNotFound, "not_resident"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{party.ErrNotGrouped, http.StatusNotFound, "not_grouped"},
	{party.ErrNoSuchInvite, http.StatusNotFound, "no_such_invite"},
	{dungeon.ErrUnknownDungeon, http.StatusNotFound, "unknown_dungeon"},
	{dungeon.ErrNotInside, http.StatusNotFound, "not_in_dungeon"},
	{progression.ErrUnknownClass, http.StatusNotFound, "unknown_class"},
	{skill.ErrUnknownSkill, http.StatusNotFound, "unknown_skill"},

	{party.ErrNotLeader, http.StatusForbidden, "not_leader"},

	{party.ErrSelfInvite, http.StatusBadRequest, "self_invite"},
	{party.ErrSelfTarget, http.StatusBadRequest, "self_target"},
	{combat.ErrNegativeDamage, http.StatusBadRequest, "negative_damage"},
	{session.ErrInvalidExtension, http.StatusBadRequest, "invalid_extension"},
	{session.ErrUnknownExtension, http.StatusBadRequest, "unknown_extension"},
	{policy.ErrInvalidPolicy, http.StatusBadRequest, "invalid_policy"},

	{party.ErrAlreadyGrouped, http.StatusConflict, "already_grouped"},
	{party.ErrGroupFull, http.StatusConflict, "group_full"},
	{party.ErrExpired, http.StatusConflict, "invite_expired"},
	{party.ErrLeaderChanged, http.StatusConflict, "leader_changed"},
	{party.ErrNotMember, http.StatusConflict, "not_member"},
	{progression.ErrAlreadyClassed, http.StatusConflict, "already_classed"},
	{skill.ErrNoClass, http.StatusConflict, "no_class"},
	{skill.ErrLevelTooLow, http.StatusConflict, "level_too_low"},
	{skill.ErrOnCooldown, http.StatusConflict, "on_cooldown"},
	{skill.ErrNotEnoughMana, http.StatusConflict, "not_enough_mana"},
	{dungeon.ErrAlreadyInside, http.StatusConflict, "already_inside"},
	{dungeon.ErrEntryPending, http.StatusConflict, "entry_pending"},
	{dungeon.ErrLevelRestricted, http.StatusConflict, "level_restricted"},
	{dungeon.ErrMemberOnCooldown, http.StatusConflict, "member_on_cooldown"},
	{dungeon.ErrEntrantsGone, http.StatusConflict, "entrants_gone"},
	{session.ErrDegraded, http.StatusConflict, "degraded"},
	{session.ErrTooManyExtension, http.StatusConflict, "extensions_full"},

	{store.ErrPersistence, http.StatusInternalServerError, "persistence"},
	{sched.ErrStopped, http.StatusServiceUnavailable, "shutting_down"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// statusFor maps a service error to an HTTP status and refusal reason.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.reason
		}
	}
	return http.StatusInternalServerError, ""
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, reason := statusFor(err)
	api.WriteErrorReason(w, status, reason, err.Error())
}
