// Package audit persists security events so operators can answer who signed in,
// from where, and which sessions were revoked.
package audit

import (
	"context"
	"encoding/json"
	"maps"

	"collab-suite/auth/internal/audit/domain"
	auditrepo "collab-suite/auth/internal/audit/repository"
	"collab-suite/auth/internal/notify"
)

// MetadataClientIP is the event metadata key carrying the caller's address.
const MetadataClientIP = "client_ip"

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// Sink implements notify.Dispatcher by writing each event to the audit repository.
type Sink struct {
	repo auditrepo.Repository
}

// NewSink returns a Sink that persists to repo.
func NewSink(repo auditrepo.Repository) *Sink {
	return &Sink{repo: repo}
}

// Dispatch writes one audit entry. The event ID is the entry ID, so redelivery is harmless.
func (s *Sink) Dispatch(ctx context.Context, e notify.Event) error {
	if s.repo == nil {
		return nil
	}
	ip := "unknown"
	meta := e.Metadata
	if v, ok := meta[MetadataClientIP]; ok {
		ip = v
		meta = maps.Clone(meta)
		delete(meta, MetadataClientIP)
	}
	var raw string
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	return s.repo.Create(ctx, &domain.AuditLog{
		ID:        e.ID,
		SubjectID: e.SubjectID,
		SessionID: e.SessionID,
		Action:    string(e.Type),
		Role:      e.Role,
		IP:        ip,
		Metadata:  raw,
		CreatedAt: e.OccurredAt,
	})
}

// StampClientIP returns a dispatcher that records the caller's IP in the event
// metadata before handing it to next. It runs on the request goroutine, so it must
// wrap any asynchronous dispatcher rather than sit behind one.
func StampClientIP(next notify.Dispatcher, extract IPExtractor) notify.Dispatcher {
	if extract == nil {
		return next
	}
	return stamp{next: next, extract: extract}
}

type stamp struct {
	next    notify.Dispatcher
	extract IPExtractor
}

func (s stamp) Dispatch(ctx context.Context, e notify.Event) error {
	meta := make(map[string]string, len(e.Metadata)+1)
	maps.Copy(meta, e.Metadata)
	meta[MetadataClientIP] = s.extract(ctx)
	e.Metadata = meta
	return s.next.Dispatch(ctx, e)
}
