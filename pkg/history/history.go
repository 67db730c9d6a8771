// Package history stores completed answers so they can be listed later.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/murmur/pkg/session"
)

// Entry is one stored completion.
type Entry struct {
	ID          string
	SessionID   string
	ChannelID   string
	Query       string
	Text        string
	Suggestions []string
	Metadata    map[string]any
	Duration    time.Duration
	TTFT        time.Duration
	TTFA        time.Duration
	WordCount   int
	CompletedAt time.Time
}

// Driver persists and lists history entries.
type Driver interface {
	// Append stores entry. Entries without an ID are assigned one.
	Append(ctx context.Context, entry *Entry) error

	// List returns up to limit entries, newest first. An empty sessionID
	// lists across all sessions; limit <= 0 means no limit.
	List(ctx context.Context, sessionID string, limit int) ([]*Entry, error)

	// Close releases any resources held by the driver.
	Close() error
}

// FromCompletion converts a finished answer into an entry.
func FromCompletion(c session.Completion) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		SessionID:   c.SessionID,
		ChannelID:   c.ChannelID,
		Query:       c.Query,
		Text:        c.Text,
		Suggestions: c.Suggestions,
		Metadata:    c.Metadata,
		Duration:    c.Metrics.Duration,
		TTFT:        c.Metrics.TimeToFirstToken,
		TTFA:        c.Metrics.TimeToFirstAudio,
		WordCount:   c.Metrics.WordCount,
		CompletedAt: c.CompletedAt,
	}
}
