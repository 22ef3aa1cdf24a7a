package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/blasperez/Private-Chat/internal/apperr"
	"github.com/blasperez/Private-Chat/internal/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionAuth verifies the Bearer session token on room-scoped endpoints.
type SessionAuth struct {
	tokens *auth.TokenManager
}

func NewSessionAuth(tokens *auth.TokenManager) *SessionAuth {
	return &SessionAuth{tokens: tokens}
}

// RequireSession rejects requests without a valid session token and stores
// the verified claims in the request context. It does not check that the
// token's room matches the URL; handlers do that, since only they know which
// room the request targets.
func (m *SessionAuth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeAuthError(w, apperr.InvalidToken(nil))
			return
		}

		claims, err := m.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeAuthError(w, apperr.InvalidToken(err))
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext retrieves the verified claims, or nil outside
// RequireSession.
func SessionFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(sessionContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// SessionRoomID parses the room id bound to the session token.
func SessionRoomID(ctx context.Context) (uuid.UUID, bool) {
	claims := SessionFromContext(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.RoomID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeAuthError(w http.ResponseWriter, ae *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	json.NewEncoder(w).Encode(map[string]string{"error": ae.Code})
}
