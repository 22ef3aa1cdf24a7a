package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents an ephemeral password-gated chat room.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	PasswordHash string     `json:"-"`
	MagicToken   string     `json:"-"`
	Capacity     int        `json:"capacity"`
	MediaPrefix  string     `json:"media_prefix"`
	CreatedAt    time.Time  `json:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	ArchivePath  string     `json:"archive_path,omitempty"`
	ArchiveAlgo  string     `json:"archive_algorithm,omitempty"`
}

// Archived reports whether the room has been archived. Once set,
// archived_at is never cleared.
func (r *Room) Archived() bool {
	return r.ArchivedAt != nil
}
