package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gemwallet/backend/internal/session/domain"
)

// pgUniqueViolation is the Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID and Token set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, principal_id, identity, token, origin, active, created_at, last_activity_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.PrincipalID, s.Identity, s.Token, s.Origin, s.Active, s.CreatedAt, s.LastActivityAt, s.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.ConstraintName == "sessions_one_active_per_principal" {
			return ErrPrincipalActive
		}
		return ErrDuplicateToken
	}
	return err
}

// GetByToken returns the session for token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, principal_id, identity, token, origin, active, created_at, last_activity_at, expires_at
		 FROM sessions WHERE token = $1`,
		token,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// FindActiveByIdentity returns all active, unexpired sessions matching the
// identity or the principal (when principalID is non-empty).
func (r *PostgresRepository) FindActiveByIdentity(ctx context.Context, identity, principalID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal_id, identity, token, origin, active, created_at, last_activity_at, expires_at
		 FROM sessions
		 WHERE active AND expires_at > $1 AND (identity = $2 OR ($3 <> '' AND principal_id = $3))`,
		now, identity, principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateActivity sets the session's last-activity timestamp while it is
// active. GREATEST keeps the timestamp monotonic under concurrent touches.
func (r *PostgresRepository) UpdateActivity(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2) WHERE token = $1 AND active`,
		token, at,
	)
	return err
}

// Retire flips the session inactive. Idempotent: retiring a retired or
// unknown token is a no-op.
func (r *PostgresRepository) Retire(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE token = $1`,
		token,
	)
	return err
}

// Reactivate flips a session back to active. Issuance self-heal only.
func (r *PostgresRepository) Reactivate(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = TRUE WHERE token = $1`,
		token,
	)
	return err
}

// RetireAllForIdentity retires every active session for the identity.
func (r *PostgresRepository) RetireAllForIdentity(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE identity = $1 AND active`,
		identity,
	)
	return err
}

// RetireAllForPrincipal retires every active session for the principal.
func (r *PostgresRepository) RetireAllForPrincipal(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE principal_id = $1 AND active`,
		principalID,
	)
	return err
}

// SweepExpired runs the two expiry phases. Each phase is an independent,
// idempotent bulk update; a row retired by the first is excluded from the
// second by the active filter.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time, grace, safetyBuffer time.Duration) (SweepResult, error) {
	var result SweepResult

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE active AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return result, err
	}
	result.AbsoluteExpired = rowsAffected(res)

	res, err = r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE
		 WHERE active AND expires_at > $1 AND last_activity_at <= $2 AND created_at <= $3`,
		now, now.Add(-grace), now.Add(-safetyBuffer),
	)
	if err != nil {
		return result, err
	}
	result.HeartbeatGap = rowsAffected(res)

	return result, nil
}

// rowsAffected extracts the row count for the sweep counters. A driver that
// cannot report the count is logged rather than silently counted as zero.
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		log.Printf("session repository: sweep rows affected: %v", err)
		return 0
	}
	return n
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.PrincipalID, &s.Identity, &s.Token, &s.Origin,
		&s.Active, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
