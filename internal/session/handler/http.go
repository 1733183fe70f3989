// Package handler exposes the session lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gemwallet/backend/internal/server/middleware"
	"gemwallet/backend/internal/session/domain"
	"gemwallet/backend/internal/session/service"
)

// Lifecycle is the slice of the session manager the handlers use.
type Lifecycle interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
	Touch(ctx context.Context, token string)
	Retire(ctx context.Context, token, reason string) error
	RetireAllForPrincipal(ctx context.Context, principalID string) error
}

// Handler serves the session endpoints.
type Handler struct {
	sessions Lifecycle
}

// New returns a session Handler backed by the given lifecycle manager.
func New(sessions Lifecycle) *Handler {
	return &Handler{sessions: sessions}
}

// MountPublic registers the endpoints that operate on the raw bearer token and
// must work even for tokens the gate would reject: logout and the idle signal
// are idempotent, and a heartbeat for a dead session is a no-op.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/heartbeat", h.Heartbeat)
	r.Post("/auth/idle", h.Idle)
}

// MountProtected registers the endpoints that require a live session.
func (h *Handler) MountProtected(r chi.Router) {
	r.Post("/auth/logout-all", h.LogoutAll)
	r.Get("/auth/session", h.Session)
}

// Logout retires the presented session. The token comes from the
// Authorization header or, mirroring the login response, from the request
// body. Unknown or already-retired tokens succeed: the client's goal state
// is "not logged in" either way.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = bodyToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.sessions.Retire(r.Context(), token, service.ReasonLogout); err != nil {
		writeError(w, http.StatusServiceUnavailable, "logout could not be completed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat records client activity for the presented session. Always 204;
// a heartbeat must never fail the client.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	h.sessions.Touch(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}

// Idle retires the presented session because the client reported itself idle.
func (h *Handler) Idle(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.sessions.Retire(r.Context(), token, service.ReasonIdle); err != nil {
		writeError(w, http.StatusServiceUnavailable, "logout could not be completed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll retires every active session for the authenticated principal.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principalID, ok := middleware.GetPrincipalID(r.Context())
	if !ok || principalID == "" {
		writeError(w, http.StatusUnauthorized, "please log in again")
		return
	}
	if err := h.sessions.RetireAllForPrincipal(r.Context(), principalID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "logout could not be completed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	PrincipalID    string     `json:"principalId"`
	Identity       string     `json:"identity"`
	Origin         string     `json:"origin,omitempty"`
	Exempt         bool       `json:"exempt"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Session returns the caller's session state. Exempt origins have no stored
// row, so only the token-derived fields are present.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, _ := middleware.GetPrincipalID(ctx)
	identity, _ := middleware.GetIdentity(ctx)
	origin, _ := middleware.GetOrigin(ctx)

	resp := sessionResponse{
		PrincipalID: principalID,
		Identity:    identity,
		Origin:      origin,
		Exempt:      middleware.IsOriginExempt(ctx),
	}
	if !resp.Exempt {
		token, _ := middleware.GetSessionToken(ctx)
		sess, err := h.sessions.Validate(ctx, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "please log in again")
			return
		}
		resp.CreatedAt = &sess.CreatedAt
		resp.LastActivityAt = &sess.LastActivityAt
		resp.ExpiresAt = &sess.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

const bearerPrefix = "bearer "

func bearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// bodyToken reads {"token": "..."} from the request body. Malformed or empty
// bodies yield "".
func bodyToken(r *http.Request) string {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
