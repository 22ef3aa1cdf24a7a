package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/blasperez/Private-Chat/internal/models"
)

// SQLiteStore handles SQLite database operations. SQLite has no RETURNING
// support in the statement shapes used here, no TIMESTAMPTZ and different
// placeholder syntax; the methods below translate the canonical behavior,
// re-deriving inserted key fields from the insert parameters where Postgres
// would have returned them.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/privatechat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/privatechat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		magic_token TEXT UNIQUE NOT NULL,
		capacity INTEGER NOT NULL,
		media_prefix TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		archived_at DATETIME,
		archive_path TEXT,
		archive_algorithm TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		sender TEXT NOT NULL,
		ts INTEGER NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS room_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		display_name TEXT,
		joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		left_at DATETIME,
		ip TEXT,
		user_agent TEXT,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		mime_type TEXT,
		size_bytes INTEGER,
		uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_magic_token ON rooms(magic_token);
	CREATE INDEX IF NOT EXISTS idx_rooms_archived_at ON rooms(archived_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room_id ON messages(room_id);
	CREATE INDEX IF NOT EXISTS idx_media_room_id ON media(room_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRoom persists a new room record. SQLite lacks RETURNING here, so the
// returned record is rebuilt from the parameters that were inserted.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id uuid.UUID, passwordHash, magicToken string, capacity int, mediaPrefix string) (*models.Room, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, password_hash, magic_token, capacity, media_prefix, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), passwordHash, magicToken, capacity, mediaPrefix, now)
	if err != nil {
		return nil, err
	}

	return &models.Room{
		ID:           id,
		PasswordHash: passwordHash,
		MagicToken:   magicToken,
		Capacity:     capacity,
		MediaPrefix:  mediaPrefix,
		CreatedAt:    now,
	}, nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE id = ?`, id.String())
}

// GetRoomByMagicToken resolves a magic token to its room.
func (s *SQLiteStore) GetRoomByMagicToken(ctx context.Context, token string) (*models.Room, error) {
	return s.getRoom(ctx, `WHERE magic_token = ?`, token)
}

func (s *SQLiteStore) getRoom(ctx context.Context, where string, arg any) (*models.Room, error) {
	room := &models.Room{}
	var idStr string
	var archivePath, archiveAlgo *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash, magic_token, capacity, media_prefix,
		       created_at, archived_at, archive_path, archive_algorithm
		FROM rooms `+where,
		arg).Scan(
		&idStr,
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.ID = uuid.MustParse(idStr)
	if archivePath != nil {
		room.ArchivePath = *archivePath
	}
	if archiveAlgo != nil {
		room.ArchiveAlgo = *archiveAlgo
	}
	return room, nil
}

// MarkArchived stamps archived_at once; the archived_at guard keeps the
// transition monotonic.
func (s *SQLiteStore) MarkArchived(ctx context.Context, id uuid.UUID, archivePath, algorithm string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rooms
		SET archived_at = CURRENT_TIMESTAMP, archive_path = ?, archive_algorithm = ?
		WHERE id = ? AND archived_at IS NULL
	`, archivePath, algorithm, id.String())
	return err
}

// AppendMessage appends one message to the room's transcript.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, kind, content, sender, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.Kind, msg.Content, msg.SenderID, msg.Timestamp)
	return err
}

// ListMessages returns the room's messages in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, kind, content, sender, ts
		FROM messages
		WHERE room_id = ?
		ORDER BY seq ASC
	`, roomID.String())
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

// RecordJoin inserts a join audit entry. The row id Postgres would RETURNING
// is re-derived from the driver's last-insert id.
func (s *SQLiteStore) RecordJoin(ctx context.Context, sess *models.ParticipantSession) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO room_sessions (room_id, display_name, joined_at, ip, user_agent)
		VALUES (?, ?, ?, ?, ?)
	`, sess.RoomID, sess.DisplayName, sess.JoinedAt, sess.IP, sess.UserAgent)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MarkLeave stamps left_at on a join audit entry.
func (s *SQLiteStore) MarkLeave(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE room_sessions SET left_at = CURRENT_TIMESTAMP WHERE id = ? AND left_at IS NULL
	`, sessionID)
	return err
}

// RecordMedia inserts metadata for an uploaded object.
func (s *SQLiteStore) RecordMedia(ctx context.Context, m *models.MediaObject) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media (room_id, storage_key, mime_type, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.RoomID, m.StorageKey, m.MimeType, m.SizeBytes, m.UploadedAt)
	return err
}

// ListMedia returns the media metadata recorded for a room.
func (s *SQLiteStore) ListMedia(ctx context.Context, roomID uuid.UUID) ([]models.MediaObject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, storage_key, mime_type, size_bytes, uploaded_at
		FROM media
		WHERE room_id = ?
		ORDER BY id ASC
	`, roomID.String())
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
