package stream

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("stream reader already started")

// ProtocolError reports an event that could not be decoded: an unknown
// discriminator or a malformed payload. Protocol errors are logged and the
// event is skipped; they never end a stream.
type ProtocolError struct {
	Kind Kind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error in %q event: %v", e.Kind, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a transport-level failure. It is terminal for the
// reader that produced it. StatusCode is set when the server answered with a
// non-2xx status.
type ConnectionError struct {
	Err        error
	StatusCode int
}

func (e ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connection error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e ConnectionError) Unwrap() error {
	return e.Err
}
