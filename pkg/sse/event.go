// Package sse decodes Server-Sent Events from a streamed HTTP response body.
// It is the framing layer underneath the murmur event stream reader and knows
// nothing about chat or audio semantics.
//
// A Reader can optionally tee every raw byte it consumes to a second writer,
// which murmur uses to record a stream verbatim for later inspection.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
