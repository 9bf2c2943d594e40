package auth

import "sync"

// Session holds the identity the client currently acts as. It is owned by
// the composition root and injected everywhere the current user matters;
// consumers read it at the moment of use, never caching the value.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

func NewSession() *Session {
	return &Session{}
}

// CurrentUserID returns the signed-in user id, or "" when signed out.
func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Token returns the current session token, if any.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetCurrentUser(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.token = token
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.token = ""
}
