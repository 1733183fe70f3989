package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey struct{ name string }

var (
	principalIDKey = contextKey{"principal_id"}
	identityKey    = contextKey{"identity"}
	tokenKey       = contextKey{"session_token"}
	originKey      = contextKey{"origin"}
	exemptKey      = contextKey{"origin_exempt"}
	clientIPKey    = contextKey{"client_ip"}
)

// WithPrincipal returns a context carrying the authenticated principal.
// Handlers read these via GetPrincipalID, GetIdentity, GetSessionToken,
// GetOrigin, and IsOriginExempt.
func WithPrincipal(ctx context.Context, principalID, identity, token, origin string, exempt bool) context.Context {
	ctx = context.WithValue(ctx, principalIDKey, principalID)
	ctx = context.WithValue(ctx, identityKey, identity)
	ctx = context.WithValue(ctx, tokenKey, token)
	ctx = context.WithValue(ctx, originKey, origin)
	ctx = context.WithValue(ctx, exemptKey, exempt)
	return ctx
}

// GetPrincipalID returns the principal id from context and true if set; otherwise "", false.
func GetPrincipalID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(principalIDKey).(string)
	return v, ok
}

// GetIdentity returns the login handle from context and true if set; otherwise "", false.
func GetIdentity(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityKey).(string)
	return v, ok
}

// GetSessionToken returns the bearer token from context and true if set; otherwise "", false.
func GetSessionToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenKey).(string)
	return v, ok
}

// GetOrigin returns the origin claim from context and true if set; otherwise "", false.
func GetOrigin(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(originKey).(string)
	return v, ok
}

// IsOriginExempt reports whether the request passed the gate on the
// origin exemption rather than a live session.
func IsOriginExempt(ctx context.Context) bool {
	v, _ := ctx.Value(exemptKey).(bool)
	return v
}

// ClientIP records the request's remote IP in the context so the audit
// logger can read it without a handle on the request. Mount after RealIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
	})
}

// ClientIPFromContext returns the remote IP recorded by ClientIP, or
// "unknown" when absent. Shaped for audit.IPExtractor.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
