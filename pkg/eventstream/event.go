package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/murmur/pkg/session"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionRecorded is emitted after an answer completed.
	EventTypeCompletionRecorded = "murmur.completion.recorded"
)

// CompletionEvent is a transport-neutral event payload for a completed answer.
type CompletionEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	Completion    CompletionPayload `json:"completion"`
}

// EventSource identifies where the answer was requested.
type EventSource struct {
	ChannelID string `json:"channel_id"`
	SessionID string `json:"session_id"`
	Client    string `json:"client,omitempty"`
}

// CompletionPayload is the JSON form of a session.Completion.
type CompletionPayload struct {
	Query       string         `json:"query"`
	Text        string         `json:"text"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Metrics     MetricsPayload `json:"metrics"`
	CompletedAt time.Time      `json:"completed_at"`
}

// MetricsPayload carries durations in milliseconds.
type MetricsPayload struct {
	DurationMs         int64          `json:"duration_ms"`
	TimeToFirstTokenMs int64          `json:"ttft_ms"`
	TimeToFirstAudioMs int64          `json:"ttfa_ms,omitempty"`
	WordCount          int            `json:"word_count"`
	Server             map[string]any `json:"server,omitempty"`
}

// NewCompletionEvent builds the event for c.
func NewCompletionEvent(c session.Completion, client string, now time.Time) *CompletionEvent {
	return &CompletionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source: EventSource{
			ChannelID: c.ChannelID,
			SessionID: c.SessionID,
			Client:    client,
		},
		Completion: CompletionPayload{
			Query:       c.Query,
			Text:        c.Text,
			Suggestions: c.Suggestions,
			Metadata:    c.Metadata,
			Metrics: MetricsPayload{
				DurationMs:         c.Metrics.Duration.Milliseconds(),
				TimeToFirstTokenMs: c.Metrics.TimeToFirstToken.Milliseconds(),
				TimeToFirstAudioMs: c.Metrics.TimeToFirstAudio.Milliseconds(),
				WordCount:          c.Metrics.WordCount,
				Server:             c.Metrics.Server,
			},
			CompletedAt: c.CompletedAt,
		},
	}
}
