package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"collab-suite/auth/internal/directory/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an account repository backed by the accounts table.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByEmail returns the account with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
		SELECT id, email, password_hash, role, status, created_at, updated_at
		FROM accounts
		WHERE lower(email) = lower($1)`

	var a domain.Account
	if err := r.db.GetContext(ctx, &a, query, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return &a, nil
}

// Create validates and inserts the account. CreatedAt and UpdatedAt default to now.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	const query = `
		INSERT INTO accounts (id, email, password_hash, role, status, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :role, :status, :created_at, :updated_at)
		ON CONFLICT DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateEmail
	}
	return nil
}

// SetStatus updates the account status and its updated_at timestamp.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.Status) (bool, error) {
	const query = `UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set account status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
