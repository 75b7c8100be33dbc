// Package uistate holds transient flags for user-initiated auth actions.
package uistate

import (
	"sync"

	"vhybz-auth/internal/domain"
)

// Store is a process-wide domain.UIStateStore. It never touches the network.
type Store struct {
	mu      sync.RWMutex
	state   domain.UIState
	subs    map[int]func(domain.UIState)
	nextSub int
}

// NewStore returns a store in its reset state.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(domain.UIState))}
}

func (s *Store) Snapshot() domain.UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *domain.UIState) { st.Loading = loading })
}

// SetError records a user-visible error. Setting an error ends any loading phase.
func (s *Store) SetError(msg string) {
	s.update(func(st *domain.UIState) {
		st.Error = msg
		if msg != "" {
			st.Loading = false
		}
	})
}

func (s *Store) ClearError() {
	s.update(func(st *domain.UIState) { st.Error = "" })
}

func (s *Store) Reset() {
	s.update(func(st *domain.UIState) { *st = domain.UIState{} })
}

// Subscribe registers fn for state changes and returns its cancel func.
func (s *Store) Subscribe(fn func(domain.UIState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) update(mutate func(*domain.UIState)) {
	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	after := s.state
	fns := make([]func(domain.UIState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, fn := range fns {
		fn(after)
	}
}
