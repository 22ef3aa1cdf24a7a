package models

import "time"

// ParticipantSession is the join audit record for one connection's lifetime.
// It is kept independent of the message history.
type ParticipantSession struct {
	ID          int64      `json:"id"`
	RoomID      string     `json:"room_id"`
	DisplayName string     `json:"display_name,omitempty"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	IP          string     `json:"ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}
