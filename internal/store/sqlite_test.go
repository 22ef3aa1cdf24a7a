package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blasperez/Private-Chat/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createTestRoom(t *testing.T, s *SQLiteStore, capacity int) *models.Room {
	t.Helper()
	room, err := s.CreateRoom(context.Background(), uuid.New(), "$argon2id$hash", uuid.NewString(), capacity, "rooms/x")
	require.NoError(t, err)
	return room
}

func TestCreateAndGetRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createTestRoom(t, s, 5)

	got, err := s.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "$argon2id$hash", got.PasswordHash)
	assert.Equal(t, created.MagicToken, got.MagicToken)
	assert.Equal(t, 5, got.Capacity)
	assert.False(t, got.Archived())

	byToken, err := s.GetRoomByMagicToken(ctx, created.MagicToken)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, created.ID, byToken.ID)
}

func TestGetRoomMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetRoom(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	byToken, err := s.GetRoomByMagicToken(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, byToken)
}

func TestMarkArchivedIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := createTestRoom(t, s, 2)

	require.NoError(t, s.MarkArchived(ctx, room.ID, "archives/first.log.enc.json", "AES-256-GCM"))

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, got.Archived())
	assert.Equal(t, "archives/first.log.enc.json", got.ArchivePath)
	assert.Equal(t, "AES-256-GCM", got.ArchiveAlgo)

	// A second call must not overwrite the first stamp
	require.NoError(t, s.MarkArchived(ctx, room.ID, "archives/second.log.enc.json", "none"))

	again, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "archives/first.log.enc.json", again.ArchivePath)
	assert.Equal(t, "AES-256-GCM", again.ArchiveAlgo)
	assert.Equal(t, got.ArchivedAt.Unix(), again.ArchivedAt.Unix())
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := createTestRoom(t, s, 2)

	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, s.AppendMessage(ctx, &models.Message{
			ID:        uuid.NewString(),
			RoomID:    room.ID.String(),
			Kind:      models.KindText,
			Content:   content,
			SenderID:  "1",
			Timestamp: int64(1000 + i),
		}))
	}

	msgs, err := s.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestRecordJoinAndMarkLeave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := createTestRoom(t, s, 2)

	id1, err := s.RecordJoin(ctx, &models.ParticipantSession{
		RoomID:      room.ID.String(),
		DisplayName: "alice",
		JoinedAt:    time.Now().UTC(),
		IP:          "127.0.0.1",
	})
	require.NoError(t, err)
	id2, err := s.RecordJoin(ctx, &models.ParticipantSession{
		RoomID:   room.ID.String(),
		JoinedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	require.NoError(t, s.MarkLeave(ctx, id1))
	// Leaving twice is harmless
	require.NoError(t, s.MarkLeave(ctx, id1))
}

func TestRecordAndListMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := createTestRoom(t, s, 2)

	require.NoError(t, s.RecordMedia(ctx, &models.MediaObject{
		RoomID:     room.ID.String(),
		StorageKey: "rooms/" + room.ID.String() + "/cat.png",
		MimeType:   "image/png",
		SizeBytes:  8,
		UploadedAt: time.Now().UTC(),
	}))

	objs, err := s.ListMedia(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "image/png", objs[0].MimeType)
	assert.Equal(t, int64(8), objs[0].SizeBytes)
}
