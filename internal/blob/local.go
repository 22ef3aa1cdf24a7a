package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore stores objects under a root directory on the local filesystem,
// one subtree per key prefix.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem-backed store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) keyPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put stores an object under the room's directory, suffixing the name on
// collision.
func (s *LocalStore) Put(ctx context.Context, roomID, desiredName string, r io.Reader, mimeType string) (PutResult, error) {
	dir, err := s.keyPath(MediaKey(roomID, ""))
	if err != nil {
		return PutResult{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return PutResult{}, err
	}

	name, err := resolveCollision(ctx, desiredName, func(_ context.Context, candidate string) (bool, error) {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	})
	if err != nil {
		return PutResult{}, err
	}

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return PutResult{}, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return PutResult{}, err
	}

	return PutResult{Key: MediaKey(roomID, name), Name: name, Size: size}, nil
}

// PutArchive writes a transcript artifact under archives/.
func (s *LocalStore) PutArchive(ctx context.Context, name string, data []byte) (string, error) {
	key := ArchiveKey(name)
	p, err := s.keyPath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0600); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader over the object at key.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// ServableRef resolves a key to the file on disk.
func (s *LocalStore) ServableRef(key string) Ref {
	p, err := s.keyPath(key)
	if err != nil {
		return Ref{}
	}
	return Ref{LocalPath: p}
}

// Exists reports whether an object is stored at key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Ping verifies the root directory is accessible.
func (s *LocalStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.root)
	return err
}
