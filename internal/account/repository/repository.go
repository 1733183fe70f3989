package repository

import (
	"context"

	"gemwallet/backend/internal/account/domain"
)

// Repository defines persistence for accounts.
type Repository interface {
	// GetByEmail returns the account for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// GetByHandle returns the account for handle, or nil if not found.
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	// Create persists a new account.
	Create(ctx context.Context, a *domain.Account) error
}
