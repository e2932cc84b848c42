package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/louisbranch/stylematch/internal/auth"
	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
	"github.com/louisbranch/stylematch/internal/matchmaking/engine"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/requestctx"
)

// AuthHandler issues guest identities.
type AuthHandler struct {
	tokens *auth.Service
}

// NewAuthHandler creates the guest identity handler.
func NewAuthHandler(tokens *auth.Service) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// Guest handles POST /v1/auth/guest.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	guest, err := h.tokens.IssueGuest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, guest)
}

// SessionHandler exposes matchmaking and session lifecycle endpoints.
type SessionHandler struct {
	engine *engine.Engine
	store  storage.Store
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(eng *engine.Engine, store storage.Store) *SessionHandler {
	return &SessionHandler{engine: eng, store: store}
}

// JoinRequest is the request body for joining matchmaking.
type JoinRequest struct {
	IsPrivate  bool   `json:"is_private"`
	InviteCode string `json:"invite_code"`
}

// JoinResponse describes where a join request landed.
type JoinResponse struct {
	SessionID       string `json:"session_id"`
	Role            string `json:"role"`
	Status          string `json:"status"`
	InviteCode      string `json:"invite_code,omitempty"`
	AvatarName      string `json:"avatar_name"`
	QueueETASeconds int    `json:"queue_eta_seconds,omitempty"`
	BotDemo         bool   `json:"bot_demo,omitempty"`
}

func toJoinResponse(result engine.JoinResult) JoinResponse {
	return JoinResponse{
		SessionID:       result.SessionID,
		Role:            domain.RoleLabel(result.Role),
		Status:          domain.StatusLabel(result.Status),
		InviteCode:      result.InviteCode,
		AvatarName:      result.AvatarName,
		QueueETASeconds: int(result.QueueETA / time.Second),
		BotDemo:         result.BotDemo,
	}
}

// Join handles POST /v1/join.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.New(apperrors.CodeUnknown, "invalid request body"))
			return
		}
	}

	result, err := h.engine.Join(r.Context(), engine.JoinInput{
		UserID:     requestctx.UserIDFromContext(r.Context()),
		IsPrivate:  req.IsPrivate,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJoinResponse(result))
}

// BotDemo handles POST /v1/bot-demo.
func (h *SessionHandler) BotDemo(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.BotDemo(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJoinResponse(result))
}

// ParticipantView is one participant in a session view.
type ParticipantView struct {
	Role       string `json:"role"`
	AvatarName string `json:"avatar_name"`
	IsBot      bool   `json:"is_bot"`
}

// RoundView is one round in a session view.
type RoundView struct {
	ID               string    `json:"id"`
	RoundNo          int       `json:"round_no"`
	Topic            string    `json:"topic"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	StartedAt        time.Time `json:"started_at"`
	EndsAt           time.Time `json:"ends_at"`
}

// SessionView is the full session snapshot clients resync from.
type SessionView struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	InviteCode   string            `json:"invite_code,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ActivatedAt  *time.Time        `json:"activated_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Rounds       []RoundView       `json:"rounds"`
}

// Get handles GET /v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, apperrors.New(apperrors.CodeSessionNotFound, "session not found"))
			return
		}
		writeError(w, apperrors.Wrap(apperrors.CodeStorageFailure, "load session", err))
		return
	}
	participants, err := h.store.ListParticipants(r.Context(), sessionID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeStorageFailure, "load participants", err))
		return
	}
	rounds, err := h.store.ListRounds(r.Context(), sessionID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeStorageFailure, "load rounds", err))
		return
	}

	view := SessionView{
		ID:           session.ID,
		Status:       domain.StatusLabel(session.Status),
		CreatedAt:    session.CreatedAt,
		ActivatedAt:  session.ActivatedAt,
		EndedAt:      session.EndedAt,
		Participants: make([]ParticipantView, 0, len(participants)),
		Rounds:       make([]RoundView, 0, len(rounds)),
	}
	// Invite codes are only live while waiting.
	if session.Status == domain.StatusWaiting {
		view.InviteCode = session.InviteCode
	}
	for _, p := range participants {
		view.Participants = append(view.Participants, ParticipantView{
			Role:       domain.RoleLabel(p.Role),
			AvatarName: p.AvatarName,
			IsBot:      p.IsBot,
		})
	}
	for _, round := range rounds {
		view.Rounds = append(view.Rounds, RoundView{
			ID:               round.ID,
			RoundNo:          round.RoundNo,
			Topic:            round.Topic,
			TimeLimitSeconds: round.TimeLimitSeconds,
			StartedAt:        round.StartedAt,
			EndsAt:           round.EndsAt,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// AdvanceStatusRequest is the request body for a status transition.
type AdvanceStatusRequest struct {
	Status string `json:"status"`
}

// AdvanceStatus handles POST /v1/sessions/{id}/status.
func (h *SessionHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req AdvanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeUnknown, "invalid request body"))
		return
	}

	to := domain.StatusFromLabel(req.Status)
	if to == domain.StatusUnspecified {
		writeError(w, apperrors.New(apperrors.CodeSessionInvalidStatus, "unknown status "+req.Status))
		return
	}

	if err := h.engine.AdvanceStatus(r.Context(), sessionID, to); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// CompleteRound handles POST /v1/sessions/{id}/rounds/{no}/complete.
func (h *SessionHandler) CompleteRound(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	roundNo, err := strconv.Atoi(vars["no"])
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeRoundInvalidNumber, "invalid round number"))
		return
	}

	if err := h.engine.CompleteRound(r.Context(), sessionID, roundNo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"round_no": roundNo})
}
