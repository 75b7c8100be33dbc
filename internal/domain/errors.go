package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Authentication errors.
var (
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrForbidden         = errors.New("access denied")
	ErrMalformedIdentity = errors.New("malformed identity response")
)

// Transport errors.
var (
	ErrNetwork          = errors.New("network error")
	ErrNavigationFailed = errors.New("navigation failed")
)

// Shell errors.
var (
	ErrCSRFSecretMissing = errors.New("CSRF secret not configured")
	ErrCSRFInvalid       = errors.New("invalid CSRF token")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// StatusError records a non-2xx response from the identity backend.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Is lets errors.Is match 401 responses against ErrUnauthenticated.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthenticated && e.StatusCode == http.StatusUnauthorized
}

// IsUnauthenticated reports whether err represents "no session" rather than a fault.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// statusText returns the reason phrase for an *http.Response status line.
func statusText(code int, status string) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return status
}

// NewStatusError builds a StatusError from a response code and status line.
func NewStatusError(code int, status string) *StatusError {
	return &StatusError{StatusCode: code, Status: statusText(code, status)}
}
