package oauth

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an authentication failure so callers can branch on the
// class instead of matching error strings.
type Kind int

const (
	// KindConfig marks a missing mandatory credential. Fatal; aborts
	// initialization permanently.
	KindConfig Kind = iota

	// KindPermanent marks a rejected refresh token (HTTP 400). The caller
	// must clear token state and start a fresh authorization.
	KindPermanent

	// KindTransient marks a retriable failure (network error, 5xx).
	KindTransient

	// KindProtocol marks a 2xx response with a malformed or incomplete body.
	KindProtocol

	// KindCancelled marks context cancellation. Never retried.
	KindCancelled
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindPermanent:
		return "permanent"
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrReauthorizationRequired signals that the refresh token is invalid or
// expired and a new interactive authorization must be started.
var ErrReauthorizationRequired = errors.New("re-authorization required")

// ErrAuthorizationNotCompleted signals that the interactive flow ended
// without producing a token pair.
var ErrAuthorizationNotCompleted = errors.New("authorization not completed")

// AuthError carries the failure class plus diagnostics (status code, raw
// response body). Token values never appear in it.
type AuthError struct {
	Kind       Kind
	Op         string // "refresh", "exchange", "initialize"
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s failed (%s)", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsReauthorizationRequired reports whether err demands a fresh interactive
// authorization rather than another retry.
func IsReauthorizationRequired(err error) bool {
	return errors.Is(err, ErrReauthorizationRequired)
}

// IsCancelled reports whether err is a cancellation outcome.
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == KindCancelled
}
