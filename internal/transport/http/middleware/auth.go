package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/securevoting/backend/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller injected into the request context.
// Token is carried through because the ledger re-validates the session at
// cast time rather than trusting a stale middleware check.
type Identity struct {
	VoterID   string
	SessionID string
	Token     string
}

// SessionValidator validates a bearer token (signature + active session
// record) and returns the bound session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
}

// Auth returns middleware that validates the Bearer token and injects the
// caller identity into context.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			sess, err := sessions.Validate(r.Context(), token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			ident := &Identity{VoterID: sess.VoterID, SessionID: sess.SessionID, Token: token}
			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
