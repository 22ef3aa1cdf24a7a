package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/models"
	"github.com/blasperez/Private-Chat/internal/registry"
	"github.com/blasperez/Private-Chat/internal/store"
)

// maxTextBytes caps the content of one text message.
const maxTextBytes = 4096

// Handler upgrades authenticated requests to websocket connections and runs
// their lifecycle against the registry.
type Handler struct {
	registry *registry.Registry
	store    store.DataStore
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHandler(reg *registry.Registry, st store.DataStore, tokens *auth.TokenManager, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: reg,
		store:    st,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The session token is the access control; origin is not.
				return true
			},
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP authenticates the session token, upgrades the connection and
// attaches it to the room. The token travels in the query string because
// browser websocket clients cannot set headers; Authorization is accepted
// for non-browser clients.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		ae := apperr.From(err)
		http.Error(w, ae.Code, ae.Status)
		return
	}

	roomID, err := uuid.Parse(claims.RoomID)
	if err != nil {
		http.Error(w, apperr.CodeInvalidToken, http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(uuid.NewString(), strconv.FormatInt(claims.SessionID, 10), conn)

	history, count, err := h.registry.Connect(r.Context(), roomID, c.id, c.session, c)
	if err != nil {
		ae := apperr.From(err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(errorFrame{Type: TypeError, Code: ae.Code})
		conn.Close()
		return
	}

	frames := make([]messageFrame, len(history))
	for i := range history {
		frames[i] = toMessageFrame(&history[i])
	}
	c.enqueue(historyFrame{Type: TypeHistory, Messages: frames})
	c.enqueue(presenceFrame{Type: TypePresence, Count: count})

	h.logger.Info().
		Str("room_id", roomID.String()).
		Int64("session_id", claims.SessionID).
		Msg("participant connected")

	go c.writePump()
	h.readPump(c, roomID)
}

// authenticate extracts and verifies the session token.
func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil, apperr.InvalidToken(nil)
	}
	claims, err := h.tokens.Verify(token)
	if err != nil {
		return nil, apperr.InvalidToken(err)
	}
	return claims, nil
}

// readPump consumes client frames until the connection drops, then detaches
// the participant. Detaching may start the room's drain countdown.
func (h *Handler) readPump(c *client, roomID uuid.UUID) {
	defer func() {
		remaining := h.registry.Disconnect(roomID, c.id, c.session)
		close(c.send)
		c.conn.Close()
		// Only stamp the audit row once the session's last connection is
		// gone; one closed tab of several is not a leave.
		if remaining == 0 {
			h.markLeave(c.session)
		}
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("room_id", roomID.String()).Msg("websocket read error")
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.enqueue(errorFrame{Type: TypeError, Code: "INVALID_FRAME"})
			continue
		}

		switch in.Type {
		case TypeMessage:
			h.handleText(c, roomID, in.Content)
		case TypeMedia:
			// Media travels over the HTTP upload endpoint; the server
			// announces it to the room after the bytes are stored.
			c.enqueue(errorFrame{Type: TypeError, Code: "MEDIA_VIA_UPLOAD"})
		case TypeLeave:
			return
		default:
			c.enqueue(errorFrame{Type: TypeError, Code: "UNKNOWN_FRAME"})
		}
	}
}

// handleText appends one text message. Rejections come back as error frames
// on the sender's connection only; the room never sees a rejected message.
func (h *Handler) handleText(c *client, roomID uuid.UUID, content string) {
	if content == "" || !utf8.ValidString(content) {
		c.enqueue(errorFrame{Type: TypeError, Code: "EMPTY_MESSAGE"})
		return
	}
	if len(content) > maxTextBytes {
		c.enqueue(errorFrame{Type: TypeError, Code: apperr.CodeMessageTooLong})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.registry.Append(ctx, roomID, c.session, models.KindText, content); err != nil {
		ae := apperr.From(err)
		c.enqueue(errorFrame{Type: TypeError, Code: ae.Code})
		if ae.Code == apperr.CodeRoomArchived {
			c.conn.Close()
		}
	}
}

// markLeave stamps the join audit row. Best effort; the live state already
// reflects the disconnect.
func (h *Handler) markLeave(sessionKey string) {
	sessionID, err := strconv.ParseInt(sessionKey, 10, 64)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.MarkLeave(ctx, sessionID); err != nil {
		h.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("mark leave failed")
	}
}
