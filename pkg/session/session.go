// Package session drives one streamed chat answer at a time: it feeds text
// through the suggestions sanitizer, routes audio to the reconstruction
// engine and reconciles the final answer into exactly one Completion.
package session

import (
	"strings"
	"time"
)

// State is the lifecycle state of a StreamSession.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StreamSession is the state of one request. It is owned by the Controller
// and only touched under the controller lock.
type StreamSession struct {
	Query     string
	ChannelID string
	SessionID string
	StartedAt time.Time

	FirstTextAt  time.Time
	FirstAudioAt time.Time

	// Suggestions and Metadata hold the latest side channel values.
	Suggestions    []string
	hasSuggestions bool
	Metadata       map[string]any

	raw   strings.Builder
	text  string
	state State
	epoch uint64
}

// Text is the sanitized text accumulated so far.
func (s *StreamSession) Text() string {
	return s.text
}

// Metrics describe one completed answer.
type Metrics struct {
	Duration         time.Duration
	TimeToFirstToken time.Duration
	// TimeToFirstAudio is zero when no audio arrived.
	TimeToFirstAudio time.Duration
	WordCount        int
	// Server holds whatever metrics the server attached to the done event.
	Server map[string]any
}

// Completion is the finalized result of a session.
type Completion struct {
	Query       string
	SessionID   string
	ChannelID   string
	Text        string
	Suggestions []string
	Metadata    map[string]any
	Metrics     Metrics
	CompletedAt time.Time
}

// Snapshot is a copy of the controller's observable fields.
type Snapshot struct {
	Text         string
	State        State
	Streaming    bool
	LastError    error
	LastMetrics  *Metrics
	AudioPlaying bool
}
