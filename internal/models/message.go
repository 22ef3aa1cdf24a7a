package models

// Message kinds. A media message carries a descriptor instead of text.
const (
	KindText  = "text"
	KindMedia = "media"
)

// Message is a single transcript entry. Messages are append-only and their
// order is the order of successful append, end to end: storage, broadcast
// and the archived transcript all agree.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room_id"`
	Kind      string `json:"kind"`
	Content   string `json:"content"` // plaintext, or a JSON media descriptor
	SenderID  string `json:"sender"`  // session id of the sender
	Timestamp int64  `json:"ts"`      // Unix ms
}

// MediaDescriptor is the structured content of a media message.
type MediaDescriptor struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url"`
}
