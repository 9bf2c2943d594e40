package errors

import "errors"

var (
	ErrWorkerPanic        = errors.New("worker panicked")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenGeneration    = errors.New("token generation failed")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrBlobNotFound       = errors.New("blob not found")
	ErrAudioFileMissing   = errors.New("audio file missing")
	ErrNotAudioFile       = errors.New("not an audio file")
	ErrSubscriptionClosed = errors.New("subscription closed")
)
