package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"chat-mirror/auth"
	"chat-mirror/errors"
)

type account struct {
	userID       string
	passwordHash string
}

// Authenticator is an in-memory account service. Passwords are stored as
// argon2id hashes, the same scheme a real deployment would use.
type Authenticator struct {
	mu       sync.Mutex
	accounts map[string]account // keyed by email
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{accounts: make(map[string]account)}
}

func (a *Authenticator) SignUp(_ context.Context, email, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.accounts[email]; taken {
		return "", errors.ErrUserAlreadyExists
	}
	userID := uuid.NewString()
	a.accounts[email] = account{userID: userID, passwordHash: hash}
	return userID, nil
}

func (a *Authenticator) SignIn(_ context.Context, email, password string) (string, error) {
	a.mu.Lock()
	acc, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok {
		// Generic error to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(password, acc.passwordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}
	return acc.userID, nil
}

// Messaging returns a fresh device token per request, or a configured error.
type Messaging struct {
	mu      sync.Mutex
	failErr error
}

func NewMessaging() *Messaging {
	return &Messaging{}
}

// FailTokens makes Token return err until reset with nil. Test hook.
func (m *Messaging) FailTokens(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *Messaging) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	return uuid.NewString(), nil
}
