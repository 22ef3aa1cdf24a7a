package blob

import (
	"bytes"
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// GridFSStore stores objects in a MongoDB GridFS bucket, keyed by the
// rooms/{roomId}/{name} filename convention.
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

// NewGridFSStore connects to MongoDB and opens (or creates) the bucket.
func NewGridFSStore(ctx context.Context, mongoURL, bucketName, dbName string) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	bucket, err := gridfs.NewBucket(
		client.Database(dbName),
		options.GridFSBucket().SetName(bucketName),
	)
	if err != nil {
		return nil, err
	}
	return &GridFSStore{client: client, bucket: bucket}, nil
}

// Put uploads an object under the room's key namespace, suffixing the name
// on collision.
func (s *GridFSStore) Put(ctx context.Context, roomID, desiredName string, r io.Reader, mimeType string) (PutResult, error) {
	name, err := resolveCollision(ctx, desiredName, func(ctx context.Context, candidate string) (bool, error) {
		return s.Exists(ctx, MediaKey(roomID, candidate))
	})
	if err != nil {
		return PutResult{}, err
	}

	key := MediaKey(roomID, name)
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"room_id":   roomID,
		"mime_type": mimeType,
	})
	stream, err := s.bucket.OpenUploadStream(key, opts)
	if err != nil {
		return PutResult{}, err
	}
	size, err := io.Copy(stream, r)
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return PutResult{}, err
	}

	return PutResult{Key: key, Name: name, Size: size}, nil
}

// PutArchive uploads a transcript artifact under archives/.
func (s *GridFSStore) PutArchive(ctx context.Context, name string, data []byte) (string, error) {
	key := ArchiveKey(name)
	if _, err := s.bucket.UploadFromStream(key, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader over the object at key.
func (s *GridFSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(key)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ServableRef: GridFS objects have no local path; callers stream via Open.
func (s *GridFSStore) ServableRef(key string) Ref {
	return Ref{}
}

// Exists reports whether an object is stored at key.
func (s *GridFSStore) Exists(ctx context.Context, key string) (bool, error) {
	cursor, err := s.bucket.Find(bson.M{"filename": key}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)
	return cursor.Next(ctx), cursor.Err()
}

// Ping checks the MongoDB connection.
func (s *GridFSStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (s *GridFSStore) Close(ctx context.Context) error {
	err := s.client.Disconnect(ctx)
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return nil
	}
	return err
}
