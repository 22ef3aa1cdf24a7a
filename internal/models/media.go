package models

import "time"

// MediaObject records the metadata of an uploaded file. The bytes themselves
// are owned by the blob store; zero or more messages may reference them.
type MediaObject struct {
	ID         int64     `json:"id"`
	RoomID     string    `json:"room_id"`
	StorageKey string    `json:"storage_key"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}
