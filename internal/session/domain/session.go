package domain

import (
	"strings"
	"time"
)

// Principal is the authenticated subject and its role, as returned by the directory.
type Principal struct {
	SubjectID string
	Role      string
}

// Valid reports whether p can be used to key a session. Subject ids may not
// be empty or contain the key separator.
func (p Principal) Valid() bool {
	return p.SubjectID != "" && !strings.Contains(p.SubjectID, ":") && p.Role != ""
}

// Credentials is a login request. Device is a free-form label shown in session lists.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Device   string `json:"device" validate:"max=128"`
}

// Record is the server-side entry that makes a refresh token usable. Exactly
// one Record exists per live (subject, session) pair; its TTL never exceeds the
// refresh token's lifetime.
type Record struct {
	Fingerprint      string    `json:"fingerprint"`
	Role             string    `json:"role"`
	Device           string    `json:"device,omitempty"`
	// AccessTTLSeconds is a policy-shortened access lifetime carried across rotations. Zero means the default.
	AccessTTLSeconds int64     `json:"access_ttl_seconds,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SubjectID        string
	SessionID        string
	Role             string
}

// SessionInfo describes one live session for ListSessions. It never carries the fingerprint.
type SessionInfo struct {
	SessionID string
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerifiedClaims is the result of Verify.
type VerifiedClaims struct {
	SubjectID string
	Role      string
	SessionID string // refresh tokens only
	TokenUse  string
	ExpiresAt time.Time
}
