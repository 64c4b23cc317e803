package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session lifecycle; the transport maps them to status codes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken is the single answer for every refresh-token failure. It
	// wraps ErrUnauthorized so callers re-authenticate.
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTooManyRequests     = errors.New("refresh already in progress for this session")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Kind is the failure category carried on the wire.
type Kind string

const (
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindTooManyRequests     Kind = "TOO_MANY_REQUESTS"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindNotFound            Kind = "NOT_FOUND"
	KindInvalidArgument     Kind = "INVALID_ARGUMENT"
	KindInternal            Kind = "INTERNAL"
)

// KindOf returns the Kind of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTooManyRequests):
		return KindTooManyRequests
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}

// ErrorForKind returns the sentinel for k, or nil for KindInternal and unknown kinds.
func ErrorForKind(k Kind) error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindTooManyRequests:
		return ErrTooManyRequests
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case KindNotFound:
		return ErrNotFound
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return nil
	}
}
