package registry

import (
	"sync"
	"time"

	"github.com/blasperez/Private-Chat/internal/models"
)

// Event types fanned out to subscribers.
const (
	EventMessage  = "message"
	EventMedia    = "media"
	EventPresence = "presence"
)

// Event is what the registry fans out to connected participants. Exactly one
// of Message/Count is meaningful, per Type.
type Event struct {
	Type    string
	Message *models.Message
	Count   int
}

// Subscriber receives a room's events. TrySend must not block; a subscriber
// that cannot keep up returns an error and is skipped for that event.
type Subscriber interface {
	TrySend(ev Event) error
}

// roomState is the per-room lifecycle position.
type roomState int

const (
	// stateActive covers any room with live participants, and a freshly
	// created room that nobody has joined yet.
	stateActive roomState = iota
	// stateDraining means the count hit zero and the grace timer is armed.
	stateDraining
	// stateArchived is terminal. No transitions out.
	stateArchived
)

// liveRoom is the single owner of one room's mutable state. Every mutation
// happens under mu, and each broadcast follows its state change inside the
// same critical section, so an observer never sees a stale count after a
// transition it triggered.
type liveRoom struct {
	mu    sync.Mutex
	room  *models.Room
	state roomState
	// subs is keyed by connection id. A session that opens two tabs holds
	// two entries here, and each counts toward presence and capacity.
	subs map[string]Subscriber
	// sessions counts live connections per session id. A sender is
	// connected as long as its count is above zero.
	sessions   map[string]int
	transcript []models.Message
	timer      *time.Timer
	// drainEpoch invalidates a grace timer that fired after it was
	// cancelled: the callback compares its captured epoch before acting.
	drainEpoch uint64
}

func newLiveRoom(room *models.Room) *liveRoom {
	return &liveRoom{
		room:     room,
		subs:     make(map[string]Subscriber),
		sessions: make(map[string]int),
	}
}

// broadcast sends ev to every subscriber, the originator included. Callers
// hold r.mu.
func (r *liveRoom) broadcast(ev Event) {
	for _, sub := range r.subs {
		_ = sub.TrySend(ev)
	}
}

// broadcastExcept sends ev to every subscriber but skip. Used on connect so
// the joining participant sees history before any live event. Callers hold
// r.mu.
func (r *liveRoom) broadcastExcept(ev Event, skip string) {
	for id, sub := range r.subs {
		if id == skip {
			continue
		}
		_ = sub.TrySend(ev)
	}
}

// presenceEvent builds the current presence broadcast. Callers hold r.mu.
func (r *liveRoom) presenceEvent() Event {
	return Event{Type: EventPresence, Count: len(r.subs)}
}

// stopTimer cancels a pending grace timer and bumps the epoch so a
// concurrently fired callback becomes a no-op. Callers hold r.mu.
func (r *liveRoom) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.drainEpoch++
}
