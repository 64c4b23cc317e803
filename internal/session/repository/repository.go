package repository

import (
	"context"
	"time"

	"collab-suite/auth/internal/session/domain"
)

// Repository defines the session store access patterns used by the lifecycle manager.
type Repository interface {
	// Get returns the record for (subjectID, sessionID), or nil if none exists.
	Get(ctx context.Context, subjectID, sessionID string) (*domain.Record, error)
	// Put writes rec for (subjectID, sessionID) expiring after ttl.
	Put(ctx context.Context, subjectID, sessionID string, rec *domain.Record, ttl time.Duration) error
	// Delete removes the record and reports whether it existed.
	Delete(ctx context.Context, subjectID, sessionID string) (bool, error)
	// AcquireRefreshLock atomically creates the refresh lock for the session.
	// It reports false when the lock is already held.
	AcquireRefreshLock(ctx context.Context, subjectID, sessionID, owner string, ttl time.Duration) (bool, error)
	// DeleteAllBySubject removes every session of subjectID and returns how many were removed.
	DeleteAllBySubject(ctx context.Context, subjectID string) (int, error)
	// ListBySubject returns the live sessions of subjectID keyed by session id.
	ListBySubject(ctx context.Context, subjectID string) (map[string]*domain.Record, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
