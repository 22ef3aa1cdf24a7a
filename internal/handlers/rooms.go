package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/blasperez/Private-Chat/internal/api/middleware"
	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/metrics"
)

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Password string `json:"password"`
	Capacity int    `json:"capacity,omitempty"`
}

// CreateRoomResponse returns the room id and the shareable magic link. The
// password is never echoed back.
type CreateRoomResponse struct {
	ID        string `json:"id"`
	MagicLink string `json:"magic_link"`
	Capacity  int    `json:"capacity"`
}

// ResolveResponse describes the room behind a magic link, without granting
// access to it.
type ResolveResponse struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
	Present  int    `json:"present"`
	Archived bool   `json:"archived"`
}

// JoinRequest represents the join request body.
type JoinRequest struct {
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// JoinResponse carries the session token used for the websocket and uploads.
type JoinResponse struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name,omitempty"`
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, apperr.Validation(apperr.CodePasswordRequired))
		return
	}

	room, err := h.registry.CreateRoom(r.Context(), req.Password, req.Capacity)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, CreateRoomResponse{
		ID:        room.ID.String(),
		MagicLink: h.cfg.PublicURL + "/api/resolve/" + room.MagicToken,
		Capacity:  room.Capacity,
	})
}

// Resolve handles GET /api/resolve/{token}. Unknown and archived-then-
// evicted tokens both answer NOT_FOUND; an archived room that still has its
// row answers with archived=true so the client can show a tombstone.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		h.Error(w, apperr.NotFound())
		return
	}

	room, err := h.registry.ResolveMagicToken(r.Context(), token)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ResolveResponse{
		ID:       room.ID.String(),
		Capacity: room.Capacity,
		Present:  h.registry.Count(room.ID),
		Archived: room.Archived(),
	})
}

// Join handles POST /api/rooms/{id}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, apperr.NotFound())
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, apperr.InvalidPassword())
		return
	}

	result, err := h.access.Join(r.Context(), auth.JoinRequest{
		RoomID:      roomID,
		Password:    req.Password,
		DisplayName: sanitizeName(req.DisplayName),
		IP:          middleware.RealIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		metrics.JoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
		h.Error(w, err)
		return
	}

	metrics.JoinsTotal.WithLabelValues("ok").Inc()
	h.JSON(w, http.StatusOK, JoinResponse{
		Token:       result.Token,
		DisplayName: result.DisplayName,
	})
}

func joinOutcome(err error) string {
	switch {
	case apperr.IsCode(err, apperr.CodeRoomFull):
		return "full"
	case apperr.IsCode(err, apperr.CodeInvalidPassword):
		return "bad_password"
	case apperr.IsCode(err, apperr.CodeRoomArchived):
		return "archived"
	case apperr.IsCode(err, apperr.CodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
