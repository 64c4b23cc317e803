package domain

import "time"

// AuditLog is one persisted security event.
type AuditLog struct {
	ID        string    `db:"id"`
	SubjectID string    `db:"subject_id"`
	SessionID string    `db:"session_id"`
	Action    string    `db:"action"`
	Role      string    `db:"role"`
	IP        string    `db:"ip"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}
