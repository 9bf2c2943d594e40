package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chat-mirror/auth"
	"chat-mirror/domain"
	"chat-mirror/remote/memory"
)

type authFixture struct {
	service   *AuthService
	store     *memory.Store
	messaging *memory.Messaging
	session   *auth.Session
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := memory.NewStore(log)
	messaging := memory.NewMessaging()
	session := auth.NewSession()
	service := NewAuthService(log, memory.NewAuthenticator(), store, messaging,
		session, time.Hour)
	return &authFixture{service: service, store: store, messaging: messaging, session: session}
}

func TestAuthService_SignUpSuccess(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	state := f.service.SignUp(ctx, "alice@example.com", "secret1")

	success, ok := state.(domain.AuthSuccess)
	req.True(ok)
	req.NotEmpty(success.UserID)

	// The session is open and the profile document seeded
	req.Equal(success.UserID, f.session.CurrentUserID())
	req.NotEmpty(f.session.Token())
	user, err := f.store.GetUser(ctx, success.UserID)
	req.NoError(err)
	req.Equal("alice@example.com", user.GetString("email"))
	req.Positive(user.GetInt64("createdAt"))
}

func TestAuthService_SignUpRejectsInvalidEmail(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	state := f.service.SignUp(context.Background(), "not-an-email", "secret1")

	req.IsType(domain.AuthError{}, state)
	req.Empty(f.session.CurrentUserID())
}

func TestAuthService_SignUpRejectsShortPassword(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	state := f.service.SignUp(context.Background(), "alice@example.com", "short")

	req.IsType(domain.AuthError{}, state)
}

func TestAuthService_SignUpRejectsDuplicate(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	req.IsType(domain.AuthSuccess{}, f.service.SignUp(ctx, "alice@example.com", "secret1"))
	req.IsType(domain.AuthError{}, f.service.SignUp(ctx, "alice@example.com", "secret2"))
}

func TestAuthService_LoginSuccessStoresNotificationToken(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	signup := f.service.SignUp(ctx, "alice@example.com", "secret1").(domain.AuthSuccess)
	f.service.Logout()

	state := f.service.Login(ctx, "alice@example.com", "secret1")
	success, ok := state.(domain.AuthSuccess)
	req.True(ok)
	req.Equal(signup.UserID, success.UserID)

	user, err := f.store.GetUser(ctx, success.UserID)
	req.NoError(err)
	req.NotEmpty(user.GetString("fcmToken"))
}

func TestAuthService_LoginSucceedsWhenTokenFetchFails(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	f.service.SignUp(ctx, "alice@example.com", "secret1")
	f.service.Logout()

	// The push token backend is down; authentication must still succeed
	f.messaging.FailTokens(errors.New("messaging unavailable"))
	state := f.service.Login(ctx, "alice@example.com", "secret1")

	req.IsType(domain.AuthSuccess{}, state)
}

func TestAuthService_LoginRejectsWrongPassword(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	f.service.SignUp(ctx, "alice@example.com", "secret1")
	f.service.Logout()

	state := f.service.Login(ctx, "alice@example.com", "wrong-password")
	req.IsType(domain.AuthError{}, state)
	req.Empty(f.session.CurrentUserID())
}

func TestAuthService_LoginRejectsEmptyCredentials(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	state := f.service.Login(context.Background(), "", "")
	errState, ok := state.(domain.AuthError)
	req.True(ok)
	req.Equal("Email and password must not be empty", errState.Message)
}

func TestAuthService_StateMachine(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	ctx := context.Background()

	req.IsType(domain.AuthIdle{}, f.service.State())

	f.service.SignUp(ctx, "alice@example.com", "secret1")
	req.IsType(domain.AuthSuccess{}, f.service.State())

	f.service.Logout()
	req.IsType(domain.AuthIdle{}, f.service.State())
	req.Empty(f.session.CurrentUserID())

	f.service.Login(ctx, "alice@example.com", "nope")
	req.IsType(domain.AuthError{}, f.service.State())

	f.service.Reset()
	req.IsType(domain.AuthIdle{}, f.service.State())
}
