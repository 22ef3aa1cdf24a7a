// Package archive turns a finished room's transcript into a durable,
// confidential artifact and marks the room permanently archived.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/models"
	"github.com/blasperez/Private-Chat/internal/store"
)

// Archiver writes archive artifacts. It is invoked exactly once per room,
// from the draining-timer transition; idempotency is structural, the
// transition itself is one-shot.
type Archiver struct {
	store  store.DataStore
	blobs  blob.Store
	key    []byte // nil means archive in cleartext
	logger zerolog.Logger
}

// NewArchiver creates an archiver. A nil or empty key disables encryption;
// that fact is recorded in the stored metadata and logged loudly at startup
// by the caller.
func NewArchiver(st store.DataStore, blobs blob.Store, key []byte, logger zerolog.Logger) *Archiver {
	return &Archiver{store: st, blobs: blobs, key: key, logger: logger}
}

// Encrypts reports whether artifacts will be encrypted.
func (a *Archiver) Encrypts() bool { return len(a.key) > 0 }

// Archive drains the transcript, serializes it, encrypts it when a key is
// configured, writes the artifact through the blob store and stamps the
// room archived. The live buffer is preferred; an empty buffer falls back to
// the storage adapter so nothing persisted is lost.
func (a *Archiver) Archive(ctx context.Context, room *models.Room, transcript []models.Message) (string, error) {
	if len(transcript) == 0 {
		var err error
		transcript, err = a.store.ListMessages(ctx, room.ID)
		if err != nil {
			return "", fmt.Errorf("load transcript: %w", err)
		}
	}

	plaintext, err := serialize(transcript)
	if err != nil {
		return "", fmt.Errorf("serialize transcript: %w", err)
	}

	ts := time.Now().Unix()
	var (
		name string
		algo string
		data []byte
	)
	if a.Encrypts() {
		env, err := Encrypt(a.key, plaintext)
		if err != nil {
			return "", fmt.Errorf("encrypt transcript: %w", err)
		}
		data, err = json.Marshal(env)
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s_%d.log.enc.json", room.ID, ts)
		algo = AlgoAESGCM
	} else {
		a.logger.Warn().Str("room_id", room.ID.String()).Msg("no encryption key configured, archiving transcript in cleartext")
		data = plaintext
		name = fmt.Sprintf("%s_%d.log.jsonl", room.ID, ts)
		algo = AlgoNone
	}

	location, err := a.blobs.PutArchive(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}

	if err := a.store.MarkArchived(ctx, room.ID, location, algo); err != nil {
		return location, fmt.Errorf("mark archived: %w", err)
	}

	a.logger.Info().
		Str("room_id", room.ID.String()).
		Str("location", location).
		Str("algorithm", algo).
		Int("messages", len(transcript)).
		Msg("room archived")

	return location, nil
}

// serialize renders the transcript as newline-delimited JSON, one message
// per line, in append order.
func serialize(transcript []models.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range transcript {
		if err := enc.Encode(&transcript[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Deserialize parses a newline-delimited JSON transcript back into
// messages. Used by the readlog tool and tests.
func Deserialize(data []byte) ([]models.Message, error) {
	var msgs []models.Message
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var m models.Message
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
