package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrInvalidInput = errors.New("invalid input")

	// Upstream errors
	ErrLoadFailed     = errors.New("upstream load failed")
	ErrUpstreamStatus = errors.New("unexpected upstream status")

	// Navigation errors
	ErrUnknownEvent    = errors.New("unknown event")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)
