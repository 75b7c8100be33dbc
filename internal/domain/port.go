package domain

import (
	"context"
	"time"
)

// SessionTransport performs the network operations against the identity backend.
type SessionTransport interface {
	// FetchIdentity returns nil, nil when the backend answers 401.
	FetchIdentity(ctx context.Context) (*Identity, error)
	Logout(ctx context.Context) error
	InitiateLogin(ctx context.Context) error
}

// Navigator performs a full navigation to an external URL on behalf of the host.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// IdentityReader exposes the last resolved identity without triggering I/O.
type IdentityReader interface {
	Identity() *Identity
}

// SessionCache is the deduplicating identity store used by the facade.
type SessionCache interface {
	IdentityReader
	Entry() CacheEntry
	EnsureFresh(ctx context.Context) (*Identity, error)
	Invalidate()
	Subscribe(fn func(CacheEntry)) (unsubscribe func())
}

// ServerState is any cached server data that must be dropped on logout.
type ServerState interface {
	Invalidate()
}

// UIStateStore holds user-action flags.
type UIStateStore interface {
	Snapshot() UIState
	SetLoading(loading bool)
	SetError(msg string)
	ClearError()
	Reset()
}

// CSRFTokenGenerator generates CSRF tokens from shell visitor identifiers.
type CSRFTokenGenerator interface {
	Generate(visitorID string) (string, error)
	Verify(visitorID, token string) bool
}

// Clock returns the current time.
type Clock func() time.Time
