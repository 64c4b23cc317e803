// Package notify dispatches security events (logins, refreshes, revocations) to
// collaborators. Dispatch is best-effort: a failed dispatch never changes the
// outcome of the operation that raised the event.
package notify

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a security event.
type EventType string

const (
	EventLogin                EventType = "login"
	EventRefresh              EventType = "refresh"
	EventLogout               EventType = "logout"
	EventLogoutAll            EventType = "logout_all"
	EventRefreshTokenMismatch EventType = "refresh_token_mismatch"
)

// Source is stamped on every event raised by this service.
const Source = "collab-auth"

// Event is a single security event. It is serialised as JSON on the wire.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"event_type"`
	Source     string            `json:"source"`
	SubjectID  string            `json:"subject_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Role       string            `json:"role,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewEvent returns an event with a fresh ULID and the current time.
func NewEvent(typ EventType, subjectID, sessionID string) Event {
	now := time.Now().UTC()
	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:       typ,
		Source:     Source,
		SubjectID:  subjectID,
		SessionID:  sessionID,
		OccurredAt: now,
	}
}
