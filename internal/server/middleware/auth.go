package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"gemwallet/backend/internal/security"
	"gemwallet/backend/internal/session/domain"
)

const bearerPrefix = "bearer "

// touchTimeout bounds the background heartbeat's store call so a hung
// connection cannot pin a goroutine per request.
const touchTimeout = 5 * time.Second

// authFailureMessage is the single message returned for every authentication
// failure. Callers never learn whether the token was malformed, unknown,
// expired, or heartbeat-stale.
const authFailureMessage = "please log in again"

// TokenValidator verifies the bearer token's signature and claims.
type TokenValidator interface {
	ValidateSession(tokenString string) (*security.SessionClaims, error)
}

// SessionChecker consults server-side session state. Satisfied by the session
// lifecycle manager.
type SessionChecker interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
	Touch(ctx context.Context, token string)
}

// OriginPolicy decides the origin exemption. Satisfied by the OPA evaluator.
type OriginPolicy interface {
	Exempt(ctx context.Context, origin string) (bool, error)
}

// Auth returns middleware that gates protected routes. It extracts the Bearer
// token, verifies its signature, and checks the server-side session unless the
// token's origin claim is exempt. On success it records a heartbeat without
// blocking the request and sets the principal in context.
func Auth(tokens TokenValidator, sessions SessionChecker, policy OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.ValidateSession(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := r.Context()
			if claims.Origin != "" && policy != nil {
				exempt, err := policy.Exempt(ctx, claims.Origin)
				if err != nil {
					// Fail closed: an undecidable policy exempts nobody.
					log.Printf("auth: origin policy failed: %v", err)
				} else if exempt {
					ctx = WithPrincipal(ctx, claims.Subject, claims.Identity, token, claims.Origin, true)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			sess, err := sessions.Validate(ctx, token)
			if err != nil {
				unauthorized(w)
				return
			}

			// Heartbeat is fire-and-forget; the response never waits on it.
			// Detached from the request context so client disconnects do not
			// abort it, but bounded so it cannot outlive a hung store call.
			go func() {
				touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
				defer cancel()
				sessions.Touch(touchCtx, token)
			}()

			ctx = WithPrincipal(ctx, sess.PrincipalID, sess.Identity, token, sess.Origin, false)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": authFailureMessage})
}
