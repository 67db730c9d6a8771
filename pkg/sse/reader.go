package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024

	// maxLineSize bounds a single SSE line. Audio fragments travel as base64
	// inside one data line, so this is sized well above the largest fragment
	// a server is expected to emit.
	maxLineSize = 4 * 1024 * 1024
)

// Reader reads SSE events from a source io.Reader. Transport chunks rarely
// line up with event boundaries; the Reader buffers partial lines across
// reads and only yields an Event once its terminating blank line arrived.
//
// When constructed with NewTeeReader, every raw line is also written to a
// destination writer before it is parsed:
//
//	┌──────────────────┐
//	│ source io.Reader │
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐   ┌───────────────────────┐
//	│   Reader.Next()  │──▶│ destination io.Writer │
//	└──────────────────┘   └───────────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│      Event       │
//	└──────────────────┘
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	// current accumulates fields for the event being built in the current scan.
	current *Event
	hasData bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses SSE events from src and writes
// all raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &Reader{
		scanner: scanner,
		dest:    dest,
		current: &Event{},
	}
}

// Next returns the next parsed SSE event. It blocks until a complete event
// is available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.dest != nil {
			// bufio.Scanner strips the newline, reinsert it for the tee.
			if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
				return nil, err
			}
		}

		// Tolerate CRLF line endings.
		raw = strings.TrimSuffix(raw, "\r")

		// A blank line signals the end of the current event.
		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}

			// Keep-alive newlines or leading blank lines.
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Source exhausted. Yield an in-progress event that was not followed by
	// a trailing blank line.
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// parseLine accumulates a single "field:value" line into the current event.
// The first space after the colon is optional and stripped if present.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	} else {
		field = line
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" is ignored: reconnection is a session-level decision.
	}
}

func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
