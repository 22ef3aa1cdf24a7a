package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutAndOpen(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	result, err := s.Put(ctx, "room-1", "cat.png", strings.NewReader("pngbytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "rooms/room-1/cat.png", result.Key)
	assert.Equal(t, "cat.png", result.Name)
	assert.Equal(t, int64(8), result.Size)

	rc, err := s.Open(ctx, result.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pngbytes", string(data))

	exists, err := s.Exists(ctx, result.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	ref := s.ServableRef(result.Key)
	assert.NotEmpty(t, ref.LocalPath)
}

func TestLocalPutSuffixesOnCollision(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := s.Put(ctx, "room-1", "notes.txt", strings.NewReader("v1"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", first.Name)

	second, err := s.Put(ctx, "room-1", "notes.txt", strings.NewReader("v2"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "notes (1).txt", second.Name)

	third, err := s.Put(ctx, "room-1", "notes.txt", strings.NewReader("v3"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "notes (2).txt", third.Name)

	// The original is untouched
	rc, err := s.Open(ctx, first.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestLocalSameNameDifferentRooms(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := s.Put(ctx, "room-a", "cat.png", strings.NewReader("a"), "image/png")
	require.NoError(t, err)
	b, err := s.Put(ctx, "room-b", "cat.png", strings.NewReader("b"), "image/png")
	require.NoError(t, err)

	// No suffixing across rooms; namespaces are independent
	assert.Equal(t, "cat.png", a.Name)
	assert.Equal(t, "cat.png", b.Name)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestLocalRejectsTraversalKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Open(ctx, "../outside")
	require.Error(t, err)

	exists, err := s.Exists(ctx, "../../etc/passwd")
	require.Error(t, err)
	assert.False(t, exists)

	assert.Empty(t, s.ServableRef("../outside").LocalPath)
}

func TestLocalPutArchive(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := s.PutArchive(ctx, "room_123.log.enc.json", []byte(`{"algorithm":"AES-256-GCM"}`))
	require.NoError(t, err)
	assert.Equal(t, "archives/room_123.log.enc.json", key)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AES-256-GCM")
}

func TestSuffixedNames(t *testing.T) {
	assert.Equal(t, "cat (1).png", suffixed("cat.png", 1))
	assert.Equal(t, "cat (2).png", suffixed("cat.png", 2))
	assert.Equal(t, "archive.tar (1).gz", suffixed("archive.tar.gz", 1))
	assert.Equal(t, "README (1)", suffixed("README", 1))
}
