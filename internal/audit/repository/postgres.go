package repository

import (
	"context"
	"database/sql"

	"gemwallet/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log to the database. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	pid := sql.NullString{String: entry.PrincipalID, Valid: entry.PrincipalID != ""}
	meta := sql.NullString{String: entry.Metadata, Valid: entry.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, principal_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, pid, entry.Action, entry.Resource, entry.IP, meta, entry.CreatedAt,
	)
	return err
}
