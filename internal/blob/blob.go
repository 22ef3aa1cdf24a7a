// Package blob stores uploaded media and archived transcripts behind a
// uniform interface. Two backends exist: a local filesystem tree scoped per
// room, and a MongoDB GridFS bucket addressed by a rooms/{roomId}/{name} key
// convention. Callers never need to know which is active.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// PutResult describes a stored object.
type PutResult struct {
	// Key is the backend-agnostic storage key, rooms/{roomId}/{name}.
	Key string
	// Name is the final object name, after any collision suffixing.
	Name string
	// Size is the number of bytes written.
	Size int64
}

// Ref points at a servable object: either a local filesystem path the
// handler can serve directly, or nothing, in which case the caller streams
// the object through Open.
type Ref struct {
	LocalPath string
}

// Store is the uniform media/archive persistence surface.
type Store interface {
	// Put stores an object under the room's namespace. If desiredName
	// already exists there, a " (1)", " (2)", ... suffix is inserted before
	// the extension until a free name is found; existing objects are never
	// silently overwritten.
	Put(ctx context.Context, roomID, desiredName string, r io.Reader, mimeType string) (PutResult, error)

	// PutArchive stores a transcript artifact under the archives namespace
	// and returns its storage key.
	PutArchive(ctx context.Context, name string, data []byte) (string, error)

	// Open returns a reader over the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// ServableRef resolves a key to a local path when the backend can serve
	// bytes straight off disk.
	ServableRef(key string) Ref

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error
}

// MediaKey builds the canonical storage key for a room object.
func MediaKey(roomID, name string) string {
	return path.Join("rooms", roomID, name)
}

// ArchiveKey builds the canonical storage key for an archive artifact.
func ArchiveKey(name string) string {
	return path.Join("archives", name)
}

// suffixed returns name with " (n)" inserted before the extension.
func suffixed(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// resolveCollision probes names derived from desiredName until exists
// reports a free one.
func resolveCollision(ctx context.Context, desiredName string, exists func(context.Context, string) (bool, error)) (string, error) {
	name := desiredName
	for n := 1; ; n++ {
		taken, err := exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = suffixed(desiredName, n)
	}
}
