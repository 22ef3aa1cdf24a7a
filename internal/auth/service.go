package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/models"
	"github.com/blasperez/Private-Chat/internal/store"
)

// PresenceSource reports how many participants are currently connected to a
// room. The live registry implements it; a room with no live state counts as
// zero.
type PresenceSource interface {
	Count(roomID uuid.UUID) int
}

// JoinRequest carries everything needed to admit a participant.
type JoinRequest struct {
	RoomID      uuid.UUID
	Password    string
	DisplayName string
	IP          string
	UserAgent   string
}

// JoinResult is returned on successful admission.
type JoinResult struct {
	Token       string
	DisplayName string
}

// Service implements room admission: password verification, capacity
// enforcement and session-token issuance.
type Service struct {
	store    store.DataStore
	presence PresenceSource
	tokens   *TokenManager
	logger   zerolog.Logger
}

// NewService creates the access-control service.
func NewService(st store.DataStore, presence PresenceSource, tokens *TokenManager, logger zerolog.Logger) *Service {
	return &Service{store: st, presence: presence, tokens: tokens, logger: logger}
}

// Join admits a participant to a room. Checks run in a fixed order: room
// existence, archived state, capacity, then password; capacity is enforced
// before the password so a full room answers ROOM_FULL even to a correct
// password. A join audit entry is recorded independent of message history.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	room, err := s.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if room == nil {
		return nil, apperr.NotFound()
	}
	if room.Archived() {
		return nil, apperr.RoomArchived()
	}
	if s.presence.Count(room.ID) >= room.Capacity {
		return nil, apperr.RoomFull()
	}

	ok, err := VerifyPassword(req.Password, room.PasswordHash)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !ok {
		s.logger.Debug().Str("room_id", room.ID.String()).Msg("join rejected: bad password")
		return nil, apperr.InvalidPassword()
	}

	sessionID, err := s.store.RecordJoin(ctx, &models.ParticipantSession{
		RoomID:      room.ID.String(),
		DisplayName: req.DisplayName,
		JoinedAt:    time.Now().UTC(),
		IP:          req.IP,
		UserAgent:   req.UserAgent,
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}

	token, err := s.tokens.Issue(room.ID.String(), sessionID, req.DisplayName)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	s.logger.Info().
		Str("room_id", room.ID.String()).
		Int64("session_id", sessionID).
		Msg("participant admitted")

	return &JoinResult{Token: token, DisplayName: req.DisplayName}, nil
}
