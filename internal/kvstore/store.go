// Package kvstore is the shared TTL key-value store behind sessions and refresh locks.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a networked key-value store with per-key expiry. Every method is a
// round trip and honours ctx cancellation.
type Store interface {
	// Get returns the value at key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// SetWithTTL writes value at key, replacing any previous value, expiring after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsentWithTTL atomically creates key with ttl. It reports false
	// without writing when key already exists.
	SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// ScanByPrefix walks every key starting with prefix, one page at a time.
	// Pages may repeat a key; fn must tolerate that. Returning an error from fn stops the walk.
	ScanByPrefix(ctx context.Context, prefix string, fn func(keys []string) error) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// DefaultScanCount is the page-size hint passed to SCAN.
const DefaultScanCount = 100
