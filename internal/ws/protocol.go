// Package ws carries the real-time leg of a room: one websocket per
// participant, a read pump feeding the registry and a write pump draining
// the fan-out buffer.
package ws

import "github.com/blasperez/Private-Chat/internal/models"

// Frame types sent by clients.
const (
	TypeMessage = "message"
	TypeLeave   = "leave"
)

// Frame types sent by the server. TypeMessage and TypeMedia carry one
// transcript entry each; TypeHistory replays the transcript on connect.
const (
	TypeMedia    = "media"
	TypePresence = "presence"
	TypeHistory  = "history"
	TypeError    = "error"
)

// inbound is a client frame. Only Type and Content are read.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// messageFrame wraps a transcript entry for the wire.
type messageFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Ts      int64  `json:"ts"`
}

// presenceFrame announces the room's current participant count.
type presenceFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// historyFrame replays the transcript accumulated before this connection.
type historyFrame struct {
	Type     string         `json:"type"`
	Messages []messageFrame `json:"messages"`
}

// errorFrame reports a rejected frame without dropping the connection.
type errorFrame struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func toMessageFrame(m *models.Message) messageFrame {
	frameType := TypeMessage
	if m.Kind == models.KindMedia {
		frameType = TypeMedia
	}
	return messageFrame{
		Type:    frameType,
		ID:      m.ID,
		Sender:  m.SenderID,
		Content: m.Content,
		Ts:      m.Timestamp,
	}
}
