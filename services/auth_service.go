package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-mirror/auth"
	"chat-mirror/domain"
	"chat-mirror/remote"
)

type IAuthService interface {
	SignUp(ctx context.Context, email, password string) domain.AuthState
	Login(ctx context.Context, email, password string) domain.AuthState
	Logout()
	State() domain.AuthState
	Reset()
}

// AuthService runs the sign-up and login flows and owns the auth state
// machine. Every flow ends in either Success or Error; supporting writes
// such as the profile document or the notification token never fail a
// flow that authenticated correctly.
type AuthService struct {
	log           *slog.Logger
	authn         remote.Authenticator
	store         remote.Store
	messaging     remote.Messaging
	session       *auth.Session
	tokenDuration time.Duration
	clock         func() time.Time

	mu    sync.Mutex
	state domain.AuthState
}

func NewAuthService(log *slog.Logger, authn remote.Authenticator, store remote.Store,
	messaging remote.Messaging, session *auth.Session, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		log:           log,
		authn:         authn,
		store:         store,
		messaging:     messaging,
		session:       session,
		tokenDuration: tokenDuration,
		clock:         time.Now,
		state:         domain.AuthIdle{},
	}
}

// SignUp creates an account, then seeds the user's profile document.
// Profile seeding is best-effort: a failure is logged but the account is
// already live, so the flow still reports Success.
func (s *AuthService) SignUp(ctx context.Context, email, password string) domain.AuthState {
	email = strings.TrimSpace(email)
	if err := auth.ValidateSignUp(auth.SignUpRequest{Email: email, Password: password}); err != nil {
		return s.setState(domain.AuthError{Message: "Email must be valid and password at least 6 characters"})
	}

	s.setState(domain.AuthLoading{})

	userID, err := s.authn.SignUp(ctx, email, password)
	if err != nil {
		return s.setState(domain.AuthError{Message: err.Error()})
	}

	if err := s.store.SetUser(ctx, userID, map[string]any{
		"email":     email,
		"name":      "",
		"createdAt": s.clock().UnixMilli(),
	}); err != nil {
		s.log.Warn("Profile write failed after sign-up", "userId", userID, "error", err)
	}

	s.openSession(userID, email)
	return s.setState(domain.AuthSuccess{UserID: userID})
}

// Login authenticates against the remote backend and refreshes the
// user's notification token. The token refresh is best-effort.
func (s *AuthService) Login(ctx context.Context, email, password string) domain.AuthState {
	email = strings.TrimSpace(email)
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return s.setState(domain.AuthError{Message: "Email and password must not be empty"})
	}

	s.setState(domain.AuthLoading{})

	userID, err := s.authn.SignIn(ctx, email, password)
	if err != nil {
		return s.setState(domain.AuthError{Message: err.Error()})
	}

	s.refreshNotificationToken(ctx, userID)
	s.openSession(userID, email)
	return s.setState(domain.AuthSuccess{UserID: userID})
}

func (s *AuthService) refreshNotificationToken(ctx context.Context, userID string) {
	token, err := s.messaging.Token(ctx)
	if err != nil {
		s.log.Warn("Notification token fetch failed", "userId", userID, "error", err)
		return
	}
	if err := s.store.UpdateUser(ctx, userID, map[string]any{"fcmToken": token}); err != nil {
		s.log.Warn("Notification token write failed", "userId", userID, "error", err)
	}
}

func (s *AuthService) openSession(userID, email string) {
	token, err := auth.GenerateToken(userID, email, s.tokenDuration)
	if err != nil {
		// The account is authenticated; a missing local token only disables
		// token introspection, not the session itself.
		s.log.Warn("Session token generation failed", "userId", userID, "error", err)
	}
	s.session.SetCurrentUser(userID, token)
}

// Logout clears the session and returns the state machine to Idle.
func (s *AuthService) Logout() {
	s.session.Clear()
	s.setState(domain.AuthIdle{})
}

// State returns the current auth flow state.
func (s *AuthService) State() domain.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns the state machine to Idle, e.g. after an error was shown.
func (s *AuthService) Reset() {
	s.setState(domain.AuthIdle{})
}

func (s *AuthService) setState(state domain.AuthState) domain.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return state
}
