package bookingapi

import (
	"sync"

	"github.com/tripmate/travel-booking/pkg/jwt"
)

// Session holds the access token of the signed-in user. An expired or
// unreadable token counts as signed out.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession creates a session, optionally with an existing token
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the bearer token if it is present and not expired
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || jwt.IsExpired(s.token) {
		return "", false
	}
	return s.token, true
}

// Set replaces the token, e.g. after login
func (s *Session) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear signs the session out
func (s *Session) Clear() {
	s.Set("")
}
