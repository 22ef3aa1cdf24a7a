package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/archive"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/config"
	"github.com/blasperez/Private-Chat/internal/metrics"
	"github.com/blasperez/Private-Chat/internal/models"
	"github.com/blasperez/Private-Chat/internal/store"
)

// Registry owns every live room: creation, magic-link resolution, the
// presence count that gates joins, message fan-out and the one-shot
// drain-then-archive transition when the last participant leaves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*liveRoom

	store    store.DataStore
	archiver *archive.Archiver
	grace    time.Duration
	defCap   int
	logger   zerolog.Logger
}

func New(st store.DataStore, arch *archive.Archiver, grace time.Duration, defaultCapacity int, logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:    make(map[uuid.UUID]*liveRoom),
		store:    st,
		archiver: arch,
		grace:    grace,
		defCap:   defaultCapacity,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// CreateRoom validates the request, persists the room and registers it live
// with zero participants. A fresh room is active; the grace countdown only
// starts once someone has joined and everyone has left.
func (g *Registry) CreateRoom(ctx context.Context, password string, capacity int) (*models.Room, error) {
	if password == "" {
		return nil, apperr.Validation(apperr.CodePasswordRequired)
	}
	if len(password) < auth.MinPasswordLen {
		return nil, apperr.Validation(apperr.CodePasswordTooShort)
	}
	if capacity == 0 {
		capacity = g.defCap
	}
	if capacity < config.MinCapacity || capacity > config.MaxCapacity {
		return nil, apperr.Validation(apperr.CodeInvalidCapacity)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	id := uuid.New()
	magicToken := uuid.NewString()
	mediaPrefix := "rooms/" + id.String()

	room, err := g.store.CreateRoom(ctx, id, hash, magicToken, capacity, mediaPrefix)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	g.mu.Lock()
	g.rooms[id] = newLiveRoom(room)
	g.mu.Unlock()

	metrics.RoomsCreated.Inc()
	metrics.LiveRooms.Inc()
	g.logger.Info().Str("room_id", id.String()).Int("capacity", capacity).Msg("room created")
	return room, nil
}

// ResolveMagicToken maps an unguessable link token back to its room. The
// caller still needs the password to join; resolution alone grants nothing.
func (g *Registry) ResolveMagicToken(ctx context.Context, token string) (*models.Room, error) {
	room, err := g.store.GetRoomByMagicToken(ctx, token)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if room == nil {
		return nil, apperr.NotFound()
	}
	return room, nil
}

// GetRoom returns the room row, preferring the live copy.
func (g *Registry) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	g.mu.RLock()
	lr, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		lr.mu.Lock()
		room := *lr.room
		lr.mu.Unlock()
		return &room, nil
	}
	room, err := g.store.GetRoom(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if room == nil {
		return nil, apperr.NotFound()
	}
	return room, nil
}

// Count reports the number of connected participants. It satisfies the
// presence source the join flow consults for capacity checks.
func (g *Registry) Count(roomID uuid.UUID) int {
	g.mu.RLock()
	lr, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return 0
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return len(lr.subs)
}

// Connect attaches a subscriber to a room, cancelling a pending drain if one
// is armed. connID identifies this connection and must be unique per
// connection; sessionID ties it to the admitted session, and the same
// session may hold several connections, each counted separately. It returns
// a snapshot of the transcript and the new participant count. The presence
// broadcast skips the new subscriber so its first frames are the history
// replay, not a live event.
func (g *Registry) Connect(ctx context.Context, roomID uuid.UUID, connID, sessionID string, sub Subscriber) ([]models.Message, int, error) {
	lr, err := g.live(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.state == stateArchived {
		return nil, 0, apperr.RoomArchived()
	}
	if len(lr.subs) >= lr.room.Capacity {
		return nil, 0, apperr.RoomFull()
	}

	if lr.state == stateDraining {
		lr.stopTimer()
		lr.state = stateActive
		g.logger.Info().Str("room_id", roomID.String()).Msg("drain cancelled, participant reconnected")
	}

	lr.subs[connID] = sub
	lr.sessions[sessionID]++
	metrics.ConnectedParticipants.Inc()

	history := make([]models.Message, len(lr.transcript))
	copy(history, lr.transcript)

	lr.broadcastExcept(lr.presenceEvent(), connID)
	return history, len(lr.subs), nil
}

// Disconnect detaches one connection. It returns the number of connections
// the session still holds, so the caller can tell a closed tab from a
// departed participant. When the last connection leaves an active room the
// room starts draining and the grace timer is armed; if nobody returns
// before it fires, the room archives.
func (g *Registry) Disconnect(roomID uuid.UUID, connID, sessionID string) int {
	g.mu.RLock()
	lr, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return 0
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	if _, ok := lr.subs[connID]; !ok {
		return lr.sessions[sessionID]
	}
	delete(lr.subs, connID)
	if lr.sessions[sessionID]--; lr.sessions[sessionID] <= 0 {
		delete(lr.sessions, sessionID)
	}
	metrics.ConnectedParticipants.Dec()

	lr.broadcast(lr.presenceEvent())

	if len(lr.subs) == 0 && lr.state == stateActive {
		lr.state = stateDraining
		lr.drainEpoch++
		epoch := lr.drainEpoch
		lr.timer = time.AfterFunc(g.grace, func() {
			g.onGraceExpired(roomID, epoch)
		})
		g.logger.Info().
			Str("room_id", roomID.String()).
			Dur("grace", g.grace).
			Msg("room empty, draining")
	}
	return lr.sessions[sessionID]
}

// Append validates, persists and broadcasts one message. Persistence happens
// under the room lock so the transcript, the durable log and the broadcast
// stream all carry the same order.
func (g *Registry) Append(ctx context.Context, roomID uuid.UUID, senderID, kind, content string) (*models.Message, error) {
	g.mu.RLock()
	lr, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound()
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.state == stateArchived {
		return nil, apperr.RoomArchived()
	}
	if lr.sessions[senderID] == 0 {
		return nil, apperr.InvalidToken(fmt.Errorf("sender not connected to room %s", roomID))
	}

	msg := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID.String(),
		Kind:      kind,
		Content:   content,
		SenderID:  senderID,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := g.store.AppendMessage(ctx, &msg); err != nil {
		return nil, apperr.Storage(err)
	}

	lr.transcript = append(lr.transcript, msg)

	evType := EventMessage
	if kind == models.KindMedia {
		evType = EventMedia
	}
	lr.broadcast(Event{Type: evType, Message: &msg})

	metrics.MessagesTotal.WithLabelValues(kind).Inc()
	return &msg, nil
}

// live returns the in-memory room, rehydrating it from storage after a
// restart. Rooms already archived never come back live.
func (g *Registry) live(ctx context.Context, roomID uuid.UUID) (*liveRoom, error) {
	g.mu.RLock()
	lr, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if ok {
		return lr, nil
	}

	room, err := g.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if room == nil {
		return nil, apperr.NotFound()
	}
	if room.Archived() {
		return nil, apperr.RoomArchived()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.rooms[roomID]; ok {
		return existing, nil
	}
	lr = newLiveRoom(room)
	g.rooms[roomID] = lr
	metrics.LiveRooms.Inc()
	return lr, nil
}

// onGraceExpired runs in the timer goroutine. It re-checks under the room
// lock that the drain is still the one it was armed for, flips the room to
// its terminal state, then archives outside the lock. The room is evicted
// whether or not archival succeeded; a failed archive is logged and the
// transcript stays readable in primary storage.
func (g *Registry) onGraceExpired(roomID uuid.UUID, epoch uint64) {
	g.mu.RLock()
	lr, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return
	}

	lr.mu.Lock()
	if lr.state != stateDraining || lr.drainEpoch != epoch || len(lr.subs) != 0 {
		lr.mu.Unlock()
		return
	}
	lr.state = stateArchived
	lr.timer = nil
	room := *lr.room
	transcript := make([]models.Message, len(lr.transcript))
	copy(transcript, lr.transcript)
	lr.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	location, err := g.archiver.Archive(ctx, &room, transcript)
	if err != nil {
		metrics.ArchivesTotal.WithLabelValues("error").Inc()
		g.logger.Error().Err(err).Str("room_id", roomID.String()).Msg("archival failed, evicting anyway")
	} else {
		metrics.ArchivesTotal.WithLabelValues("ok").Inc()
		g.logger.Info().
			Str("room_id", roomID.String()).
			Str("location", location).
			Int("messages", len(transcript)).
			Msg("room archived")
	}

	g.mu.Lock()
	delete(g.rooms, roomID)
	g.mu.Unlock()
	metrics.LiveRooms.Dec()
}
