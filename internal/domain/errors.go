package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrTurnInProgress     = errors.New("a previous message is still being answered")
	ErrInvalidPreferences = errors.New("invalid preferences")

	// ErrServiceUnavailable wraps any failure of the answering service
	// (network, auth, quota, malformed response).
	ErrServiceUnavailable = errors.New("answering service unavailable")
)
