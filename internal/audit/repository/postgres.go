package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"collab-suite/auth/internal/audit/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit log repository backed by the audit_events table.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the entry. The entry must have ID set; replays of the same ID are ignored.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	const query = `
		INSERT INTO audit_events (id, subject_id, session_id, action, role, ip, metadata, created_at)
		VALUES (:id, :subject_id, :session_id, :action, :role, :ip, :metadata, :created_at)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create audit event: %w", err)
	}
	return nil
}
