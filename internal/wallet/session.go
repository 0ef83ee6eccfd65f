// Package wallet tracks the connected account for one user session.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrProviderUnavailable = errors.New("no wallet provider available")
	ErrNoAccountSelected   = errors.New("wallet returned no account")
)

// State is the session lifecycle: unset until an account is adopted,
// connecting while an authorization prompt is outstanding.
type State int

const (
	StateUnset State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unset"
	}
}

// Session owns the single connected account shared by all orchestrators.
type Session struct {
	mu       sync.Mutex
	provider Provider
	account  string
	state    State
}

func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// Restore adopts an already-authorized account without prompting. It never
// fails the caller: no provider or no authorized account simply leaves the
// session unset. Safe to call once at startup.
func (s *Session) Restore(ctx context.Context) {
	if s.provider == nil {
		return
	}
	accounts, err := s.provider.Accounts(ctx)
	if err != nil || len(accounts) == 0 {
		return
	}
	s.mu.Lock()
	s.account = accounts[0]
	s.state = StateConnected
	s.mu.Unlock()
}

// Connect asks the provider to authorize an account and adopts the first one
// returned. Concurrent calls are not coalesced; each triggers its own prompt.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", ErrProviderUnavailable
	}

	s.mu.Lock()
	if s.state == StateUnset {
		s.state = StateConnecting
	}
	s.mu.Unlock()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		s.rollbackConnecting()
		return "", fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.rollbackConnecting()
		return "", ErrNoAccountSelected
	}

	s.mu.Lock()
	s.account = accounts[0]
	s.state = StateConnected
	s.mu.Unlock()
	return accounts[0], nil
}

func (s *Session) rollbackConnecting() {
	s.mu.Lock()
	if s.state == StateConnecting {
		s.state = StateUnset
	}
	s.mu.Unlock()
}

// Account returns the connected address, or "" while unset.
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Clear models an external wallet disconnection. No further writes succeed
// until the session reconnects.
func (s *Session) Clear() {
	s.mu.Lock()
	s.account = ""
	s.state = StateUnset
	s.mu.Unlock()
}
