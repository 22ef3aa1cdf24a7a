package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blasperez/Private-Chat/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		password_hash TEXT NOT NULL,
		magic_token TEXT UNIQUE NOT NULL,
		capacity INT NOT NULL,
		media_prefix TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		archived_at TIMESTAMPTZ,
		archive_path TEXT,
		archive_algorithm TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		sender TEXT NOT NULL,
		ts BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_sessions (
		id BIGSERIAL PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		display_name TEXT,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		left_at TIMESTAMPTZ,
		ip TEXT,
		user_agent TEXT
	);

	CREATE TABLE IF NOT EXISTS media (
		id BIGSERIAL PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		storage_key TEXT NOT NULL,
		mime_type TEXT,
		size_bytes BIGINT,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_magic_token ON rooms(magic_token);
	CREATE INDEX IF NOT EXISTS idx_rooms_archived_at ON rooms(archived_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room_id ON messages(room_id);
	CREATE INDEX IF NOT EXISTS idx_media_room_id ON media(room_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRoom persists a new room record.
func (s *PostgresStore) CreateRoom(ctx context.Context, id uuid.UUID, passwordHash, magicToken string, capacity int, mediaPrefix string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, password_hash, magic_token, capacity, media_prefix)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, password_hash, magic_token, capacity, media_prefix, created_at
	`, id, passwordHash, magicToken, capacity, mediaPrefix).Scan(
		&room.ID,
		&room.PasswordHash,
		&room.MagicToken,
		&room.Capacity,
		&room.MediaPrefix,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE id = $1`, id)
}

// GetRoomByMagicToken resolves a magic token to its room.
func (s *PostgresStore) GetRoomByMagicToken(ctx context.Context, token string) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE magic_token = $1`, token)
}

func (s *PostgresStore) getRoom(ctx context.Context, where string, arg any) (*models.Room, error) {
	room := &models.Room{}
	var archivePath, archiveAlgo *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, password_hash, magic_token, capacity, media_prefix,
		       created_at, archived_at, archive_path, archive_algorithm
		FROM rooms `+where,
		arg).Scan(
		&room.ID,
		&room.PasswordHash,
		&room.MagicToken,
		&room.Capacity,
		&room.MediaPrefix,
		&room.CreatedAt,
		&room.ArchivedAt,
		&archivePath,
		&archiveAlgo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if archivePath != nil {
		room.ArchivePath = *archivePath
	}
	if archiveAlgo != nil {
		room.ArchiveAlgo = *archiveAlgo
	}
	return room, nil
}

// MarkArchived stamps archived_at once. The WHERE guard keeps the
// transition monotonic even if a second call slips through.
func (s *PostgresStore) MarkArchived(ctx context.Context, id uuid.UUID, archivePath, algorithm string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET archived_at = NOW(), archive_path = $2, archive_algorithm = $3
		WHERE id = $1 AND archived_at IS NULL
	`, id, archivePath, algorithm)
	return err
}

// AppendMessage appends one message to the room's transcript.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, kind, content, sender, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.RoomID, msg.Kind, msg.Content, msg.SenderID, msg.Timestamp)
	return err
}

// ListMessages returns the room's messages in append order.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, kind, content, sender, ts
		FROM messages
		WHERE room_id = $1
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Kind, &m.Content, &m.SenderID, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordJoin inserts a join audit entry and returns its row id.
func (s *PostgresStore) RecordJoin(ctx context.Context, sess *models.ParticipantSession) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO room_sessions (room_id, display_name, joined_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sess.RoomID, sess.DisplayName, sess.JoinedAt, sess.IP, sess.UserAgent).Scan(&id)
	return id, err
}

// MarkLeave stamps left_at on a join audit entry.
func (s *PostgresStore) MarkLeave(ctx context.Context, sessionID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE room_sessions SET left_at = NOW() WHERE id = $1 AND left_at IS NULL
	`, sessionID)
	return err
}

// RecordMedia inserts metadata for an uploaded object.
func (s *PostgresStore) RecordMedia(ctx context.Context, m *models.MediaObject) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO media (room_id, storage_key, mime_type, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.RoomID, m.StorageKey, m.MimeType, m.SizeBytes, m.UploadedAt)
	return err
}

// ListMedia returns the media metadata recorded for a room.
func (s *PostgresStore) ListMedia(ctx context.Context, roomID uuid.UUID) ([]models.MediaObject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, storage_key, mime_type, size_bytes, uploaded_at
		FROM media
		WHERE room_id = $1
		ORDER BY id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objs []models.MediaObject
	for rows.Next() {
		var m models.MediaObject
		if err := rows.Scan(&m.ID, &m.RoomID, &m.StorageKey, &m.MimeType, &m.SizeBytes, &m.UploadedAt); err != nil {
			return nil, err
		}
		objs = append(objs, m)
	}
	return objs, rows.Err()
}
