package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"vhybz-auth/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func adminIdentity() *domain.Identity {
	return &domain.Identity{ID: "user-1", Email: "ada@example.com", Role: domain.RoleAdmin}
}

func newFacade(tr *mockTransport, c *mockCache, ui *mockUI, extra ...domain.ServerState) *AuthFacade {
	return NewAuthFacade(tr, c, ui, slog.Default(), extra...)
}

func TestAuthFacade_State(t *testing.T) {
	tests := []struct {
		name     string
		entry    domain.CacheEntry
		ui       domain.UIState
		expected AuthState
	}{
		{
			name:     "initial fetch pending",
			entry:    domain.CacheEntry{Fetching: true},
			expected: AuthState{IsLoading: true},
		},
		{
			name:     "never fetched counts as loading",
			entry:    domain.CacheEntry{},
			expected: AuthState{IsLoading: true},
		},
		{
			name:     "settled absent",
			entry:    domain.CacheEntry{FetchedAt: fetchedAt},
			expected: AuthState{},
		},
		{
			name:  "settled identity",
			entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt},
			expected: AuthState{
				User:            adminIdentity(),
				IsAuthenticated: true,
			},
		},
		{
			name:  "background refresh keeps answer visible",
			entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt, Fetching: true},
			expected: AuthState{
				User:            adminIdentity(),
				IsAuthenticated: true,
			},
		},
		{
			name:     "unresolved error is not authenticated",
			entry:    domain.CacheEntry{Identity: adminIdentity(), Err: errors.New("boom")},
			expected: AuthState{User: adminIdentity()},
		},
		{
			name:  "ui loading",
			entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt},
			ui:    domain.UIState{Loading: true, Error: "x"},
			expected: AuthState{
				User:            adminIdentity(),
				IsAuthenticated: true,
				IsLoading:       true,
				Error:           "x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockCache{entry: tt.entry}
			ui := &mockUI{state: tt.ui}
			f := newFacade(&mockTransport{}, c, ui)
			defer f.Close()

			assert.Equal(t, tt.expected, f.State())
		})
	}
}

func TestAuthFacade_Login(t *testing.T) {
	t.Run("loading stays on while navigating", func(t *testing.T) {
		tr := &mockTransport{}
		ui := &mockUI{state: domain.UIState{Error: "old"}}
		f := newFacade(tr, &mockCache{entry: domain.CacheEntry{FetchedAt: fetchedAt}}, ui)

		err := f.Login(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, tr.loginCalls)
		assert.Equal(t, domain.UIState{Loading: true}, ui.Snapshot())
		assert.True(t, f.State().IsLoading)
	})

	t.Run("navigation failure is surfaced", func(t *testing.T) {
		tr := &mockTransport{loginErr: fmt.Errorf("%w: no display", domain.ErrNavigationFailed)}
		ui := &mockUI{}
		f := newFacade(tr, &mockCache{}, ui)

		err := f.Login(context.Background())

		assert.ErrorIs(t, err, domain.ErrNavigationFailed)
		assert.False(t, ui.Snapshot().Loading)
		assert.Equal(t, "navigation failed: no display", ui.Snapshot().Error)
	})
}

func TestAuthFacade_NavigationComplete(t *testing.T) {
	c := &mockCache{entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt}}
	ui := &mockUI{state: domain.UIState{Loading: true}}
	f := newFacade(&mockTransport{}, c, ui)

	f.NavigationComplete()

	assert.Equal(t, 1, c.invalidated)
	assert.Equal(t, domain.UIState{}, ui.Snapshot())
}

func TestAuthFacade_Logout(t *testing.T) {
	t.Run("success clears all server state and resets ui", func(t *testing.T) {
		tr := &mockTransport{}
		c := &mockCache{entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt}}
		ui := &mockUI{state: domain.UIState{Error: "stale"}}
		other := &mockServerState{}
		f := newFacade(tr, c, ui, other)

		err := f.Logout(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, tr.logoutCalls)
		assert.Equal(t, 1, c.invalidated)
		assert.Equal(t, 1, other.invalidated)
		assert.Nil(t, c.Identity())
		assert.False(t, f.IsAuthenticated())
		assert.Equal(t, domain.UIState{}, ui.Snapshot())
	})

	t.Run("failure keeps session and surfaces reason", func(t *testing.T) {
		tr := &mockTransport{logoutErr: fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, domain.NewStatusError(500, ""))}
		c := &mockCache{entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt}}
		ui := &mockUI{}
		f := newFacade(tr, c, ui)

		err := f.Logout(context.Background())

		require.Error(t, err)
		assert.Equal(t, 0, c.invalidated)
		assert.Equal(t, "user-1", c.Identity().ID)
		assert.True(t, f.IsAuthenticated())

		state := f.State()
		assert.False(t, state.IsLoading)
		assert.Equal(t, "network error: logout failed: Internal Server Error", state.Error)
	})

	t.Run("empty failure message falls back", func(t *testing.T) {
		tr := &mockTransport{logoutErr: errors.New("")}
		ui := &mockUI{}
		f := newFacade(tr, &mockCache{entry: domain.CacheEntry{FetchedAt: fetchedAt}}, ui)

		_ = f.Logout(context.Background())

		assert.Equal(t, "Logout failed", ui.Snapshot().Error)
	})

	t.Run("pending logout reports loading", func(t *testing.T) {
		var during AuthState
		c := &mockCache{entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt}}
		ui := &mockUI{}
		var f *AuthFacade
		tr := &observingTransport{onLogout: func() { during = f.State() }}
		f = NewAuthFacade(tr, c, ui, slog.Default())

		require.NoError(t, f.Logout(context.Background()))

		assert.True(t, during.IsLoading)
		assert.False(t, f.logoutPending.Load())
	})
}

// observingTransport runs a hook while Logout is in progress.
type observingTransport struct {
	mockTransport
	onLogout func()
}

func (o *observingTransport) Logout(ctx context.Context) error {
	o.onLogout()
	return o.mockTransport.Logout(ctx)
}

func TestAuthFacade_Refetch(t *testing.T) {
	c := &mockCache{
		entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt},
		onEnsure: func(m *mockCache) {
			m.set(domain.CacheEntry{FetchedAt: fetchedAt})
		},
	}
	f := newFacade(&mockTransport{}, c, &mockUI{})

	identity, err := f.Refetch(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, identity)
	assert.Equal(t, 1, c.invalidated)
	assert.Equal(t, 1, c.ensureCalls)
}

func TestAuthFacade_ErrorSurfacing(t *testing.T) {
	t.Run("network failure escalates to ui error", func(t *testing.T) {
		c := &mockCache{}
		ui := &mockUI{}
		f := newFacade(&mockTransport{}, c, ui)
		defer f.Close()

		c.set(domain.CacheEntry{Err: fmt.Errorf("%w: failed to fetch user: %w", domain.ErrNetwork, domain.NewStatusError(500, ""))})

		assert.Equal(t, "network error: failed to fetch user: Internal Server Error", f.State().Error)
	})

	t.Run("unauthenticated never becomes visible", func(t *testing.T) {
		c := &mockCache{}
		ui := &mockUI{}
		f := newFacade(&mockTransport{}, c, ui)
		defer f.Close()

		c.set(domain.CacheEntry{Err: fmt.Errorf("wrapped: %w", domain.NewStatusError(401, ""))})

		assert.Empty(t, f.State().Error)
	})

	t.Run("existing ui error is not overwritten", func(t *testing.T) {
		c := &mockCache{}
		ui := &mockUI{state: domain.UIState{Error: "Logout failed"}}
		f := newFacade(&mockTransport{}, c, ui)
		defer f.Close()

		c.set(domain.CacheEntry{Err: domain.ErrNetwork})

		assert.Equal(t, "Logout failed", f.State().Error)
	})

	t.Run("escalated error is withdrawn after recovery", func(t *testing.T) {
		c := &mockCache{}
		ui := &mockUI{}
		f := newFacade(&mockTransport{}, c, ui)
		defer f.Close()

		c.set(domain.CacheEntry{Err: domain.ErrNetwork})
		require.NotEmpty(t, f.State().Error)

		c.set(domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt})
		assert.Empty(t, f.State().Error)
	})

	t.Run("closed facade stops listening", func(t *testing.T) {
		c := &mockCache{}
		ui := &mockUI{}
		f := newFacade(&mockTransport{}, c, ui)
		f.Close()

		c.set(domain.CacheEntry{Err: domain.ErrNetwork})

		assert.Empty(t, f.State().Error)
	})
}

func TestAuthFacade_Accessors(t *testing.T) {
	c := &mockCache{entry: domain.CacheEntry{Identity: adminIdentity(), FetchedAt: fetchedAt}}
	f := newFacade(&mockTransport{}, c, &mockUI{})

	assert.Equal(t, "user-1", f.User().ID)
	assert.True(t, f.IsAuthenticated())

	state := f.Ensure(context.Background())
	assert.Equal(t, 1, c.ensureCalls)
	assert.True(t, state.IsAuthenticated)
}
