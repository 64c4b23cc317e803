package repository

import (
	"context"

	"collab-suite/auth/internal/directory/domain"
)

// Repository defines persistence for directory accounts.
type Repository interface {
	// GetByEmail returns the account with the given email (case-insensitive), or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Create inserts a new account.
	Create(ctx context.Context, a *domain.Account) error
	// SetStatus enables or disables an account. Returns false if no account has id.
	SetStatus(ctx context.Context, id string, status domain.Status) (bool, error)
	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}
