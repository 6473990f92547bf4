package controller

import "errors"

var (
	// ErrOpenFailed is returned by Start when any session fails to open.
	// Every session is closed before it is returned.
	ErrOpenFailed = errors.New("controller: failed to open bridge sessions")

	// ErrVerifyFailed is returned by Start when the downstream bridge is
	// unreachable.
	ErrVerifyFailed = errors.New("controller: downstream verification failed")

	// ErrAlreadyStarted is returned by Start on a supervisor that has
	// already been started.
	ErrAlreadyStarted = errors.New("controller: already started")

	// ErrNoSessions is returned by Start when no sessions are configured.
	ErrNoSessions = errors.New("controller: no bridge sessions configured")
)
