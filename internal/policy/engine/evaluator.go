package engine

import (
	"context"
	"time"
)

// LoginInput is what the login policy sees.
type LoginInput struct {
	SubjectID string
	Role      string
	Device    string
	Now       time.Time
}

// Decision is the outcome of the login policy. A zero AccessTTL leaves the
// configured TTL in place.
type Decision struct {
	Allow     bool
	AccessTTL time.Duration
	Reason    string
}

// Evaluator evaluates the login admission policy.
type Evaluator interface {
	EvaluateLogin(ctx context.Context, in LoginInput) (Decision, error)
}

// AllowAll admits every login without changes.
type AllowAll struct{}

func (AllowAll) EvaluateLogin(context.Context, LoginInput) (Decision, error) {
	return Decision{Allow: true}, nil
}
