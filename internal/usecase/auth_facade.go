package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"vhybz-auth/internal/domain"
	appotel "vhybz-auth/utils/otel"
)

const logoutFailedMessage = "Logout failed"

// AuthState is the merged view of the session cache and UI auth state.
type AuthState struct {
	User            *domain.Identity `json:"user"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	IsLoading       bool             `json:"isLoading"`
	Error           string           `json:"error,omitempty"`
}

// AuthFacade merges the session cache and UI auth state and exposes the
// login, logout and refetch verbs.
type AuthFacade struct {
	transport   domain.SessionTransport
	cache       domain.SessionCache
	ui          domain.UIStateStore
	serverState []domain.ServerState
	logger      *slog.Logger

	logoutPending atomic.Bool
	unsubscribe   func()
	closeOnce     sync.Once

	mu        sync.Mutex
	escalated string
}

// NewAuthFacade creates a new AuthFacade. The cache is always cleared on
// logout; extra lists any other server state that must be dropped with it.
func NewAuthFacade(t domain.SessionTransport, c domain.SessionCache, ui domain.UIStateStore, l *slog.Logger, extra ...domain.ServerState) *AuthFacade {
	f := &AuthFacade{
		transport:   t,
		cache:       c,
		ui:          ui,
		serverState: append([]domain.ServerState{c}, extra...),
		logger:      l,
	}
	f.unsubscribe = c.Subscribe(f.onEntry)
	return f
}

// State derives the current auth state without I/O.
func (f *AuthFacade) State() AuthState {
	entry := f.cache.Entry()
	ui := f.ui.Snapshot()

	return AuthState{
		User:            entry.Identity,
		IsAuthenticated: entry.Identity != nil && entry.Err == nil,
		IsLoading:       entry.Pending() || ui.Loading || f.logoutPending.Load(),
		Error:           ui.Error,
	}
}

// Ensure brings the session cache up to date and returns the resulting state.
func (f *AuthFacade) Ensure(ctx context.Context) AuthState {
	if _, err := f.cache.EnsureFresh(ctx); err != nil {
		f.logger.DebugContext(ctx, "identity not resolved", "error", err)
	}
	return f.State()
}

// User returns the cached identity, or nil.
func (f *AuthFacade) User() *domain.Identity {
	return f.cache.Identity()
}

// IsAuthenticated reports whether a valid session is cached.
func (f *AuthFacade) IsAuthenticated() bool {
	return f.State().IsAuthenticated
}

// Login starts the external login flow. Loading stays true while the host
// navigates away.
func (f *AuthFacade) Login(ctx context.Context) error {
	f.ui.SetLoading(true)
	f.ui.ClearError()

	if err := f.transport.InitiateLogin(ctx); err != nil {
		f.ui.SetError(err.Error())
		f.ui.SetLoading(false)
		f.logger.ErrorContext(ctx, "login navigation failed", "error", err)
		return err
	}
	return nil
}

// NavigationComplete resets client state once the host has left the page,
// the way a full page load starts from nothing.
func (f *AuthFacade) NavigationComplete() {
	for _, s := range f.serverState {
		s.Invalidate()
	}
	f.ui.Reset()
}

// Logout ends the session. On failure the cached session is left untouched
// and the reason is surfaced as the UI error.
func (f *AuthFacade) Logout(ctx context.Context) error {
	f.ui.SetLoading(true)
	f.ui.ClearError()
	f.logoutPending.Store(true)
	defer f.logoutPending.Store(false)

	if err := f.transport.Logout(ctx); err != nil {
		msg := err.Error()
		if msg == "" {
			msg = logoutFailedMessage
		}
		f.ui.SetError(msg)
		f.ui.SetLoading(false)
		appotel.RecordLogoutFailure(ctx)
		f.logger.ErrorContext(ctx, "logout failed", "error", err)
		return err
	}

	for _, s := range f.serverState {
		s.Invalidate()
	}
	f.ui.Reset()
	f.logger.InfoContext(ctx, "logged out")
	return nil
}

// Refetch drops the cached identity and fetches it again.
func (f *AuthFacade) Refetch(ctx context.Context) (*domain.Identity, error) {
	f.cache.Invalidate()
	return f.cache.EnsureFresh(ctx)
}

// ClearError clears the UI error.
func (f *AuthFacade) ClearError() {
	f.ui.ClearError()
}

// Close stops listening to the session cache.
func (f *AuthFacade) Close() {
	f.closeOnce.Do(f.unsubscribe)
}

// onEntry escalates settled query errors to the UI error. Unauthenticated
// answers are the normal logged-out state and never become visible errors.
// An escalated error is withdrawn once a later fetch succeeds.
func (f *AuthFacade) onEntry(entry domain.CacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Err == nil {
		if entry.Settled() && f.escalated != "" && f.ui.Snapshot().Error == f.escalated {
			f.ui.ClearError()
		}
		if entry.Settled() {
			f.escalated = ""
		}
		return
	}
	if domain.IsUnauthenticated(entry.Err) || f.ui.Snapshot().Error != "" {
		return
	}
	f.escalated = entry.Err.Error()
	f.ui.SetError(f.escalated)
	f.logger.Warn("identity fetch failed after retries", "error", entry.Err)
}
