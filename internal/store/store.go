package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/blasperez/Private-Chat/internal/models"
)

// DataStore is the uniform persistence surface over the configured
// relational backend. Both PostgresStore and SQLiteStore implement it and
// must behave identically; backend selection happens once at startup.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room records
	CreateRoom(ctx context.Context, id uuid.UUID, passwordHash, magicToken string, capacity int, mediaPrefix string) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByMagicToken(ctx context.Context, token string) (*models.Room, error)
	// MarkArchived stamps archived_at and the archive location exactly once;
	// a second call against the same room is a no-op.
	MarkArchived(ctx context.Context, id uuid.UUID, archivePath, algorithm string) error

	// Transcript
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns the room's messages in append order.
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error)

	// Join audit
	RecordJoin(ctx context.Context, s *models.ParticipantSession) (int64, error)
	MarkLeave(ctx context.Context, sessionID int64) error

	// Media metadata
	RecordMedia(ctx context.Context, m *models.MediaObject) error
	ListMedia(ctx context.Context, roomID uuid.UUID) ([]models.MediaObject, error)
}
