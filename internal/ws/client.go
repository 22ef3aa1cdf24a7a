package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blasperez/Private-Chat/internal/registry"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is the read deadline; the peer must answer pings within it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxFrameBytes caps an inbound frame including JSON framing overhead.
	maxFrameBytes = 8192
	sendBuffer    = 64
)

// errBufferFull means the client's send buffer overflowed. The event is
// dropped for this client only; the room broadcast is not held up by a slow
// reader.
var errBufferFull = errors.New("ws: send buffer full")

// client is one participant connection. It satisfies registry.Subscriber.
// A session that opens several tabs gets one client per tab, each with its
// own connection id.
type client struct {
	id      string // fresh per-connection id, the registry's subscriber key
	session string // session id string, the sender identity
	conn    *websocket.Conn
	send    chan []byte
}

func newClient(id, session string, conn *websocket.Conn) *client {
	return &client{
		id:      id,
		session: session,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
}

// TrySend enqueues an event without blocking. Called with the room lock
// held, so it must never wait on the peer.
func (c *client) TrySend(ev registry.Event) error {
	var payload any
	switch ev.Type {
	case registry.EventPresence:
		payload = presenceFrame{Type: TypePresence, Count: ev.Count}
	default:
		payload = toMessageFrame(ev.Message)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errBufferFull
	}
}

// enqueue pushes a pre-marshalled frame, dropping it if the buffer is full.
func (c *client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send buffer onto the wire and keeps the connection
// alive with pings. One writer goroutine per connection; gorilla permits a
// single concurrent writer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
