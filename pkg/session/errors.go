package session

import "errors"

var (
	// ErrSessionActive is returned by SendMessage while a stream is in
	// flight. The active session is left untouched.
	ErrSessionActive = errors.New("a streaming session is already active")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrNothingToRetry is returned by Retry before any message was sent.
	ErrNothingToRetry = errors.New("no previous query to retry")

	// ErrClosed is returned once the controller was closed.
	ErrClosed = errors.New("controller is closed")
)
