package domain

import "time"

// Session represents one authenticated login bound to a single bearer token.
// Rows are never deleted; retired sessions stay behind as an audit trail.
type Session struct {
	ID          string
	PrincipalID string
	// Identity is the account's login handle, denormalized so exclusivity
	// lookups do not join the account table.
	Identity string
	// Token is the full signed bearer token string; unique across all rows ever created.
	Token string
	// Origin labels the calling surface that created the session.
	Origin string
	// Active is true while the session is usable. Flipped to false exactly
	// once and never back (the issuance self-heal is the only exception).
	Active         bool
	CreatedAt      time.Time
	LastActivityAt time.Time
	// ExpiresAt is CreatedAt + TTL, fixed at issuance and never mutated.
	ExpiresAt time.Time
}

// Expired reports whether the session's absolute TTL has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HeartbeatStale reports whether the session has gone at least grace without
// a heartbeat at now. A stale heartbeat means the client disconnected or
// closed without logging out.
func (s *Session) HeartbeatStale(now time.Time, grace time.Duration) bool {
	return now.Sub(s.LastActivityAt) >= grace
}
