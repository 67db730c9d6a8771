package audio

import "fmt"

// DecodeError is returned when a fragment payload is not valid base64. The
// fragment is dropped and its sequence stays a gap.
type DecodeError struct {
	Sequence int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding audio fragment %d: %v", e.Sequence, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PlaybackError reports a unit the player could not play. The queue moves
// on to the next unit.
type PlaybackError struct {
	UnitID string
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playing audio unit %s: %v", e.UnitID, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
