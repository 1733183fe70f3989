package repository

import (
	"context"
	"errors"
	"time"

	"gemwallet/backend/internal/session/domain"
)

var (
	// ErrDuplicateToken is returned when a session with the same token already
	// exists. Tokens carry enough entropy that a collision implies a bug, so
	// callers should treat this as fatal rather than retry.
	ErrDuplicateToken = errors.New("session token already exists")
	// ErrPrincipalActive is returned when the partial unique index rejects a
	// second active row for the same principal. This is the storage-level
	// backstop for the single-active-session rule; the service's pre-check
	// only exists for a friendlier error.
	ErrPrincipalActive = errors.New("an active session already exists for this principal")
)

// SweepResult holds per-criterion counts from one expiry sweep pass.
type SweepResult struct {
	// AbsoluteExpired is the number of sessions retired because their
	// absolute TTL elapsed.
	AbsoluteExpired int64
	// HeartbeatGap is the number of sessions retired because no heartbeat
	// arrived within the grace window.
	HeartbeatGap int64
}

// Repository defines persistence for sessions. All mutation is via
// single-row conditional statements; no method does read-then-write.
type Repository interface {
	// Create persists a new session. Returns ErrDuplicateToken or
	// ErrPrincipalActive on the corresponding unique violations.
	Create(ctx context.Context, s *domain.Session) error
	// GetByToken returns the session for token regardless of its active
	// flag, or nil if not found. Error only on database failure.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// FindActiveByIdentity returns active, unexpired sessions matching the
	// identity or, when principalID is non-empty, the principal. Used only
	// for the exclusivity pre-check.
	FindActiveByIdentity(ctx context.Context, identity, principalID string, now time.Time) ([]*domain.Session, error)
	// UpdateActivity records a heartbeat. Applies only while the session is
	// active; unknown or retired tokens are a silent no-op. The stored
	// timestamp never moves backwards.
	UpdateActivity(ctx context.Context, token string, at time.Time) error
	// Retire flips the session inactive. Idempotent.
	Retire(ctx context.Context, token string) error
	// Reactivate flips a session back to active. Exists solely for the
	// issuance self-heal against storage races; no other caller may use it.
	Reactivate(ctx context.Context, token string) error
	// RetireAllForIdentity retires every active session for the identity.
	RetireAllForIdentity(ctx context.Context, identity string) error
	// RetireAllForPrincipal retires every active session for the principal.
	RetireAllForPrincipal(ctx context.Context, principalID string) error
	// SweepExpired retires sessions past their absolute TTL, then sessions
	// whose heartbeat went stale (grace) and that are older than
	// safetyBuffer. Returns per-criterion counts.
	SweepExpired(ctx context.Context, now time.Time, grace, safetyBuffer time.Duration) (SweepResult, error)
}
