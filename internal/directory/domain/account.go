package domain

import (
	"errors"
	"strings"
	"time"
)

// Account is a directory entry that can sign in.
type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Status       Status    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// DefaultRole is assigned when an account is created without one.
const DefaultRole = "member"

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if strings.Contains(a.ID, ":") {
		return errors.New("id must not contain ':'")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if a.Role == "" {
		a.Role = DefaultRole
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Status != StatusActive && a.Status != StatusDisabled {
		return errors.New("status must be active or disabled")
	}
	return nil
}

// Active reports whether the account may sign in.
func (a *Account) Active() bool {
	return a.Status == StatusActive
}
