// game/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/game/service"
	"github.com/Ftotnem/RPG-SERVICES/game/session"
	"github.com/Ftotnem/RPG-SERVICES/game/skill"
	"github.com/Ftotnem/RPG-SERVICES/shared/api"
	"github.com/Ftotnem/RPG-SERVICES/shared/sched"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// GameAPIHandlers exposes the GameService over HTTP. Handlers run on
// request goroutines and hop onto the primary context for every call.
type GameAPIHandlers struct {
	GameService *service.GameService
	sched       sched.Scheduler
	timeout     time.Duration
}

// NewGameAPIHandlers is the constructor for the Game API handlers.
func NewGameAPIHandlers(gs *service.GameService, s sched.Scheduler, timeout time.Duration) *GameAPIHandlers {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GameAPIHandlers{GameService: gs, sched: s, timeout: timeout}
}

// --- Request/Response DTOs ---

// JoinRequest is the body of POST /events/join.
type JoinRequest struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	World string `json:"world"`
}

// PlayerRequest carries a single player id.
type PlayerRequest struct {
	UUID string `json:"uuid"`
}

// SessionSummary is returned once a joining player's record is resident.
type SessionSummary struct {
	UUID       string  `json:"uuid"`
	Class      string  `json:"class,omitempty"`
	Level      int     `json:"level"`
	CurrentExp float64 `json:"currentExp"`
	Mana       float64 `json:"mana"`
	MaxMana    float64 `json:"maxMana"`
	DamageSkin string  `json:"damageSkin"`
	Fresh      bool    `json:"fresh"`
	Degraded   bool    `json:"degraded"`
}

// DamageRequest is the body of POST /events/damage.
type DamageRequest struct {
	Attacker       string  `json:"attacker"`
	Target         string  `json:"target"`
	TargetIsPlayer bool    `json:"targetIsPlayer"`
	Raw            float64 `json:"raw"`
	Multiplier     float64 `json:"multiplier,omitempty"`
	TargetDefense  float64 `json:"targetDefense,omitempty"`
}

// DeathRequest is the body of POST /events/death.
type DeathRequest struct {
	Target     string  `json:"target"`
	Killer     string  `json:"killer,omitempty"`
	MobType    string  `json:"mobType"`
	DroppedExp float64 `json:"droppedExp"`
}

// DespawnRequest is the body of POST /events/despawn.
type DespawnRequest struct {
	Target string `json:"target"`
}

// ChatRequest carries a chat line.
type ChatRequest struct {
	UUID string `json:"uuid"`
	Text string `json:"text"`
}

// ClassRequest is the body of POST /players/{uuid}/class.
type ClassRequest struct {
	Class string `json:"class"`
}

// SkinRequest is the body of PUT /players/{uuid}/damage-skin.
type SkinRequest struct {
	Skin string `json:"skin"`
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func parseUUID(w http.ResponseWriter, field, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid UUID format for %s", field))
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID treats an empty string as absent.
func parseOptionalUUID(w http.ResponseWriter, field, raw string) (uuid.NullUUID, bool) {
	if raw == "" {
		return uuid.NullUUID{}, true
	}
	id, ok := parseUUID(w, field, raw)
	return uuid.NullUUID{UUID: id, Valid: ok}, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, "uuid", mux.Vars(r)["uuid"])
}

// call runs fn on the primary context, writing a 503/504 if it never ran.
func (gah *GameAPIHandlers) call(ctx context.Context, w http.ResponseWriter, fn func()) bool {
	if err := sched.Await(ctx, gah.sched, fn); err != nil {
		writeServiceError(w, err)
		return false
	}
	return true
}

// wait blocks for a continuation the primary context delivers later.
func wait[T any](ctx context.Context, w http.ResponseWriter, ch <-chan T) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-ctx.Done():
		var zero T
		writeServiceError(w, ctx.Err())
		return zero, false
	}
}

func summarize(rec *session.Record) SessionSummary {
	return SessionSummary{
		UUID:       rec.ID.String(),
		Class:      string(rec.Role),
		Level:      rec.Level,
		CurrentExp: rec.CurrentExp,
		Mana:       rec.CurrentMana,
		MaxMana:    rec.MaxManaValue(),
		DamageSkin: rec.DamageSkin(),
		Fresh:      rec.Fresh,
		Degraded:   rec.Degraded,
	}
}

// --- Event gateway ---

// HandleJoin registers a connected player and waits for their record.
// POST /events/join
func (gah *GameAPIHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}
	id, ok := parseUUID(w, "uuid", req.UUID)
	if !ok {
		return
	}
	if req.Name == "" {
		req.Name = id.String()
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	loaded := make(chan SessionSummary, 1)
	if !gah.call(ctx, w, func() {
		gah.GameService.PlayerJoin(id, req.Name, req.World, func(rec *session.Record) {
			loaded <- summarize(rec)
		})
	}) {
		return
	}
	summary, ok := wait(ctx, w, loaded)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, summary)
}

// HandleQuit unregisters a player and waits for their record to be saved.
// POST /events/quit
func (gah *GameAPIHandlers) HandleQuit(w http.ResponseWriter, r *http.Request) {
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	id, ok := parseUUID(w, "uuid", req.UUID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	saved := make(chan error, 1)
	if !gah.call(ctx, w, func() {
		gah.GameService.PlayerQuit(id, func(err error) { saved <- err })
	}) {
		return
	}
	err, ok := wait(ctx, w, saved)
	if !ok {
		return
	}
	if err != nil {
		log.Printf("ERROR: API: quit save for %s failed, record kept for retry: %v", id, err)
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Player quit and saved", "uuid": id.String()})
}

// HandleDamage resolves a hit.
// POST /events/damage
func (gah *GameAPIHandlers) HandleDamage(w http.ResponseWriter, r *http.Request) {
	var req DamageRequest
	if !decode(w, r, &req) {
		return
	}
	attacker, ok := parseUUID(w, "attacker", req.Attacker)
	if !ok {
		return
	}
	target, ok := parseUUID(w, "target", req.Target)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	ev := service.DamageEvent{
		Attacker:       attacker,
		Target:         target,
		TargetIsPlayer: req.TargetIsPlayer,
		Raw:            req.Raw,
		Multiplier:     req.Multiplier,
		TargetDefense:  req.TargetDefense,
	}
	var err error
	var amount float64
	var critical bool
	if !gah.call(ctx, w, func() {
		hit, e := gah.GameService.EntityDamage(ev)
		amount, critical, err = hit.Amount, hit.Critical, e
	}) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"amount": amount, "critical": critical})
}

// HandleDeath pays out a kill.
// POST /events/death
func (gah *GameAPIHandlers) HandleDeath(w http.ResponseWriter, r *http.Request) {
	var req DeathRequest
	if !decode(w, r, &req) {
		return
	}
	target, ok := parseUUID(w, "target", req.Target)
	if !ok {
		return
	}
	killer, ok := parseOptionalUUID(w, "killer", req.Killer)
	if !ok {
		return
	}
	if req.DroppedExp < 0 {
		api.WriteBadRequest(w, "droppedExp must not be negative")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var out service.DeathOutcome
	if !gah.call(ctx, w, func() {
		out = gah.GameService.EntityDeath(service.DeathEvent{
			Target:     target,
			Killer:     killer,
			MobType:    req.MobType,
			DroppedExp: req.DroppedExp,
		})
	}) {
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// HandleDespawn forgets a mob the host removed without a kill.
// POST /events/despawn
func (gah *GameAPIHandlers) HandleDespawn(w http.ResponseWriter, r *http.Request) {
	var req DespawnRequest
	if !decode(w, r, &req) {
		return
	}
	target, ok := parseUUID(w, "target", req.Target)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()
	if !gah.call(ctx, w, func() { gah.GameService.EntityDespawn(target) }) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChat routes a plain chat line to the party when the sender toggled it.
// POST /events/chat
func (gah *GameAPIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	id, ok := parseUUID(w, "uuid", req.UUID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var routed bool
	var err error
	if !gah.call(ctx, w, func() { routed, err = gah.GameService.Chat(id, req.Text) }) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"routedToParty": routed})
}

// HandleCastSkill casts the skill bound to a slot.
// POST /players/{uuid}/skills/{slot}
func (gah *GameAPIHandlers) HandleCastSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	slot := skill.Slot(mux.Vars(r)["slot"])
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var cast skill.Cast
	var err error
	if !gah.call(ctx, w, func() { cast, err = gah.GameService.CastSkill(id, slot) }) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, cast)
}

// HandleSelectClass picks a class for a classless player.
// POST /players/{uuid}/class
func (gah *GameAPIHandlers) HandleSelectClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req ClassRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var summary SessionSummary
	var err error
	if !gah.call(ctx, w, func() {
		if _, err = gah.GameService.SelectClass(id, req.Class); err == nil {
			v, _ := gah.GameService.Session(id)
			summary = SessionSummary{
				UUID:       id.String(),
				Class:      v.Progression.Class,
				Level:      v.Progression.Level,
				Mana:       v.Progression.CurrentMana,
				MaxMana:    v.Progression.BaseMaxMana,
				DamageSkin: v.DamageSkin,
			}
		}
	}) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, summary)
}

// HandleSetDamageSkin stores the player's damage skin.
// PUT /players/{uuid}/damage-skin
func (gah *GameAPIHandlers) HandleSetDamageSkin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req SkinRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gah.timeout)
	defer cancel()

	var err error
	if !gah.call(ctx, w, func() { err = gah.GameService.SetDamageSkin(id, req.Skin) }) {
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers all API endpoints for the Game Service.
func (gah *GameAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events/join", gah.HandleJoin).Methods("POST")
	router.HandleFunc("/events/quit", gah.HandleQuit).Methods("POST")
	router.HandleFunc("/events/damage", gah.HandleDamage).Methods("POST")
	router.HandleFunc("/events/death", gah.HandleDeath).Methods("POST")
	router.HandleFunc("/events/despawn", gah.HandleDespawn).Methods("POST")
	router.HandleFunc("/events/chat", gah.HandleChat).Methods("POST")

	router.HandleFunc("/players/{uuid}/skills/{slot}", gah.HandleCastSkill).Methods("POST")
	router.HandleFunc("/players/{uuid}/class", gah.HandleSelectClass).Methods("POST")
	router.HandleFunc("/players/{uuid}/damage-skin", gah.HandleSetDamageSkin).Methods("PUT")
	router.HandleFunc("/players/{uuid}/invites", gah.HandleListInvites).Methods("GET")
	router.HandleFunc("/players/{uuid}/instance", gah.HandleGetInstance).Methods("GET")

	router.HandleFunc("/groups", gah.HandleCreateGroup).Methods("POST")
	router.HandleFunc("/groups/invite", gah.HandleInvite).Methods("POST")
	router.HandleFunc("/groups/accept", gah.HandleAccept).Methods("POST")
	router.HandleFunc("/groups/deny", gah.HandleDeny).Methods("POST")
	router.HandleFunc("/groups/leave", gah.HandleLeave).Methods("POST")
	router.HandleFunc("/groups/kick", gah.HandleKick).Methods("POST")
	router.HandleFunc("/groups/promote", gah.HandlePromote).Methods("POST")
	router.HandleFunc("/groups/chat", gah.HandleGroupChat).Methods("POST")
	router.HandleFunc("/groups/chat-toggle", gah.HandleToggleChat).Methods("POST")
	router.HandleFunc("/groups/member/{uuid}", gah.HandleGetGroup).Methods("GET")

	router.HandleFunc("/dungeons/{dungeon}/enter", gah.HandleEnterDungeon).Methods("POST")
	router.HandleFunc("/dungeons/exit", gah.HandleExitDungeon).Methods("POST")

	router.HandleFunc("/admin/reload", gah.HandleReload).Methods("POST")
	router.HandleFunc("/admin/sessions/{uuid}", gah.HandleGetSession).Methods("GET")
	router.HandleFunc("/admin/sessions/{uuid}/save", gah.HandleSaveSession).Methods("POST")
}
