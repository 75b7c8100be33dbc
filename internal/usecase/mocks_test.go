package usecase

import (
	"context"
	"sync"

	"vhybz-auth/internal/domain"
)

// mockTransport implements domain.SessionTransport for testing.
type mockTransport struct {
	mu          sync.Mutex
	identity    *domain.Identity
	fetchErr    error
	logoutErr   error
	loginErr    error
	fetchCalls  int
	logoutCalls int
	loginCalls  int
}

func (m *mockTransport) FetchIdentity(context.Context) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	return m.identity, m.fetchErr
}

func (m *mockTransport) Logout(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	return m.logoutErr
}

func (m *mockTransport) InitiateLogin(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	return m.loginErr
}

// mockCache implements domain.SessionCache for testing.
type mockCache struct {
	mu          sync.Mutex
	entry       domain.CacheEntry
	subs        []func(domain.CacheEntry)
	invalidated int
	ensureCalls int
	onEnsure    func(c *mockCache)
}

func (m *mockCache) Identity() *domain.Identity {
	return m.Entry().Identity
}

func (m *mockCache) Entry() domain.CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry
}

func (m *mockCache) EnsureFresh(context.Context) (*domain.Identity, error) {
	m.mu.Lock()
	m.ensureCalls++
	hook := m.onEnsure
	m.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	e := m.Entry()
	return e.Identity, e.Err
}

func (m *mockCache) Invalidate() {
	m.mu.Lock()
	m.invalidated++
	m.mu.Unlock()
	m.set(domain.CacheEntry{})
}

func (m *mockCache) Subscribe(fn func(domain.CacheEntry)) func() {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.subs[idx] = nil
		m.mu.Unlock()
	}
}

// set replaces the entry and notifies subscribers, like a settled fetch.
func (m *mockCache) set(e domain.CacheEntry) {
	m.mu.Lock()
	m.entry = e
	subs := append([]func(domain.CacheEntry){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(e)
		}
	}
}

// mockServerState implements domain.ServerState for testing.
type mockServerState struct {
	invalidated int
}

func (m *mockServerState) Invalidate() { m.invalidated++ }

// mockUI implements domain.UIStateStore for testing.
type mockUI struct {
	mu    sync.Mutex
	state domain.UIState
}

func (m *mockUI) Snapshot() domain.UIState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockUI) SetLoading(loading bool) {
	m.mu.Lock()
	m.state.Loading = loading
	m.mu.Unlock()
}

func (m *mockUI) SetError(msg string) {
	m.mu.Lock()
	m.state.Error = msg
	if msg != "" {
		m.state.Loading = false
	}
	m.mu.Unlock()
}

func (m *mockUI) ClearError() {
	m.mu.Lock()
	m.state.Error = ""
	m.mu.Unlock()
}

func (m *mockUI) Reset() {
	m.mu.Lock()
	m.state = domain.UIState{}
	m.mu.Unlock()
}

// staticIdentity implements domain.IdentityReader for testing.
type staticIdentity struct {
	identity *domain.Identity
}

func (s staticIdentity) Identity() *domain.Identity { return s.identity }
