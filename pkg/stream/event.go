// Package stream implements the event stream reader: it opens one streamed
// HTTP request, frames the response body into discrete typed events and
// invokes a named handler per event kind.
//
// The reader has no knowledge of chat or audio semantics. It only guarantees
// that events are dispatched in arrival order, that a terminal event or a
// transport failure ends the read loop exactly once, and that no handler runs
// after Stop.
package stream

import "fmt"

// Kind is the wire discriminator of an event.
type Kind string

const (
	KindTextToken   Kind = "text-token"
	KindAudioChunk  Kind = "audio-chunk"
	KindSuggestions Kind = "suggestions"
	KindMetadata    Kind = "metadata"
	KindDone        Kind = "done"
	KindError       Kind = "error"
)

// Event is the tagged union of everything a stream can carry. The concrete
// variants are TextToken, AudioChunk, Suggestions, Metadata, Done,
// ServerError and ConnectionError.
type Event interface {
	Kind() Kind
	isEvent()
}

// TextToken is an incremental piece of assistant text.
type TextToken struct {
	Text string
}

// AudioChunk is one base64 encoded PCM fragment tagged with its position in
// the original generation order.
type AudioChunk struct {
	Sequence int
	Payload  string
}

// Suggestions is the side channel list of follow-up prompts.
type Suggestions struct {
	Items []string
}

// Metadata is an opaque key-value payload the server attaches to a reply.
type Metadata struct {
	Values map[string]any
}

// Done terminates the stream. FullAnswer is the server's authoritative text
// and may be empty.
type Done struct {
	FullAnswer string
	Metrics    map[string]any
}

// ServerError is an error event declared by the server.
type ServerError struct {
	Message string
	Code    string
}

func (TextToken) Kind() Kind       { return KindTextToken }
func (AudioChunk) Kind() Kind      { return KindAudioChunk }
func (Suggestions) Kind() Kind     { return KindSuggestions }
func (Metadata) Kind() Kind        { return KindMetadata }
func (Done) Kind() Kind            { return KindDone }
func (ServerError) Kind() Kind     { return KindError }
func (ConnectionError) Kind() Kind { return "connection-error" }

func (TextToken) isEvent()       {}
func (AudioChunk) isEvent()      {}
func (Suggestions) isEvent()     {}
func (Metadata) isEvent()        {}
func (Done) isEvent()            {}
func (ServerError) isEvent()     {}
func (ConnectionError) isEvent() {}

// Error implements error so a ServerError can be surfaced as a session error.
func (e ServerError) Error() string {
	if e.Code == "" {
		return "server error: " + e.Message
	}
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}
