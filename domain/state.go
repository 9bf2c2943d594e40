package domain

// AuthState is the closed set of authentication flow states.
// Consumers are expected to switch over every variant.
type AuthState interface {
	isAuthState()
}

type AuthIdle struct{}

type AuthLoading struct{}

type AuthSuccess struct {
	UserID string
}

type AuthError struct {
	Message string
}

func (AuthIdle) isAuthState()    {}
func (AuthLoading) isAuthState() {}
func (AuthSuccess) isAuthState() {}
func (AuthError) isAuthState()   {}

// SendState is the closed set of send flow states.
// A new send invocation always restarts the machine at Sending;
// there is no retry queue and nothing survives a process restart.
type SendState interface {
	isSendState()
}

type SendIdle struct{}

type Sending struct{}

type Sent struct{}

type SendFailed struct {
	Message string
}

func (SendIdle) isSendState()   {}
func (Sending) isSendState()    {}
func (Sent) isSendState()       {}
func (SendFailed) isSendState() {}
