package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-suite/auth/internal/kvstore"
	"collab-suite/auth/internal/session/domain"
)

// DefaultNamespace prefixes every key written by KVRepository.
const DefaultNamespace = "auth:"

// KVRepository stores sessions in a kvstore.Store.
//
// Layout:
//
//	<ns>session:<subjectID>:<sessionID>       JSON domain.Record, TTL = refresh TTL
//	<ns>lock:refresh:<subjectID>:<sessionID>  owner id, created with SET NX PX
//
// Lock keys live outside the session namespace so a subject's session scan never sees them.
type KVRepository struct {
	store kvstore.Store
	ns    string
}

// NewKVRepository returns a repository over store. An empty namespace uses DefaultNamespace.
func NewKVRepository(store kvstore.Store, namespace string) *KVRepository {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &KVRepository{store: store, ns: namespace}
}

// SessionKey returns the key of the record for (subjectID, sessionID).
func (r *KVRepository) SessionKey(subjectID, sessionID string) string {
	return r.subjectPrefix(subjectID) + sessionID
}

// LockKey returns the refresh lock key for (subjectID, sessionID).
func (r *KVRepository) LockKey(subjectID, sessionID string) string {
	return r.ns + "lock:refresh:" + subjectID + ":" + sessionID
}

func (r *KVRepository) subjectPrefix(subjectID string) string {
	return r.ns + "session:" + subjectID + ":"
}

func (r *KVRepository) Get(ctx context.Context, subjectID, sessionID string) (*domain.Record, error) {
	raw, err := r.store.Get(ctx, r.SessionKey(subjectID, sessionID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, upstream("get session", err)
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("session record %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (r *KVRepository) Put(ctx context.Context, subjectID, sessionID string, rec *domain.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: session ttl must be positive", domain.ErrInvalidArgument)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session record: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, r.SessionKey(subjectID, sessionID), string(data), ttl); err != nil {
		return upstream("put session", err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, subjectID, sessionID string) (bool, error) {
	n, err := r.store.Delete(ctx, r.SessionKey(subjectID, sessionID))
	if err != nil {
		return false, upstream("delete session", err)
	}
	return n > 0, nil
}

func (r *KVRepository) AcquireRefreshLock(ctx context.Context, subjectID, sessionID, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.store.SetIfAbsentWithTTL(ctx, r.LockKey(subjectID, sessionID), owner, ttl)
	if err != nil {
		return false, upstream("acquire refresh lock", err)
	}
	return ok, nil
}

// DeleteAllBySubject deletes each scanned page as it arrives. Keys that expire
// between scan and delete are not counted.
func (r *KVRepository) DeleteAllBySubject(ctx context.Context, subjectID string) (int, error) {
	var total int
	err := r.store.ScanByPrefix(ctx, r.subjectPrefix(subjectID), func(keys []string) error {
		n, err := r.store.Delete(ctx, keys...)
		if err != nil {
			return err
		}
		total += int(n)
		return nil
	})
	if err != nil {
		return total, upstream("delete sessions", err)
	}
	return total, nil
}

// ListBySubject skips records that vanish or fail to decode between scan and read.
func (r *KVRepository) ListBySubject(ctx context.Context, subjectID string) (map[string]*domain.Record, error) {
	prefix := r.subjectPrefix(subjectID)
	out := make(map[string]*domain.Record)
	err := r.store.ScanByPrefix(ctx, prefix, func(keys []string) error {
		for _, key := range keys {
			sid := strings.TrimPrefix(key, prefix)
			if sid == "" || strings.Contains(sid, ":") {
				continue
			}
			if _, seen := out[sid]; seen {
				continue
			}
			raw, err := r.store.Get(ctx, key)
			if errors.Is(err, kvstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec domain.Record
			if json.Unmarshal([]byte(raw), &rec) != nil {
				continue
			}
			out[sid] = &rec
		}
		return nil
	})
	if err != nil {
		return nil, upstream("list sessions", err)
	}
	return out, nil
}

func (r *KVRepository) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return upstream("ping", err)
	}
	return nil
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: session store %s: %w", domain.ErrUpstreamUnavailable, op, err)
}
