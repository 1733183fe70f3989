package repository

import (
	"context"

	"gemwallet/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
