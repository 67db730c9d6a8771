// Package redis provides a Redis-backed history driver. Entries are kept in
// sorted sets scored by completion time, one across all sessions and one
// per session.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/murmur/pkg/history"
)

const defaultPrefix = "murmur"

// Driver implements history.Driver using Redis.
type Driver struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithPrefix sets the key prefix. Default is "murmur".
func WithPrefix(prefix string) Option {
	return func(d *Driver) {
		d.prefix = prefix
	}
}

// WithTTL expires the history keys ttl after the last append. Zero keeps
// them forever.
func WithTTL(ttl time.Duration) Option {
	return func(d *Driver) {
		d.ttl = ttl
	}
}

// NewDriver connects to the Redis server at addr and checks it answers.
func NewDriver(ctx context.Context, addr string, opts ...Option) (*Driver, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return NewDriverWithClient(client, opts...), nil
}

// NewDriverWithClient wraps an existing client. Close closes the client.
func NewDriverWithClient(client *goredis.Client, opts ...Option) *Driver {
	d := &Driver{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// record is the stored JSON form of an entry.
type record struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	ChannelID   string         `json:"channel_id"`
	Query       string         `json:"query"`
	Text        string         `json:"text"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	TTFTMs      int64          `json:"ttft_ms"`
	TTFAMs      int64          `json:"ttfa_ms"`
	WordCount   int            `json:"word_count"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Append stores entry in the global and per-session sets in one pipeline.
func (d *Driver) Append(ctx context.Context, entry *history.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	data, err := json.Marshal(record{
		ID:          entry.ID,
		SessionID:   entry.SessionID,
		ChannelID:   entry.ChannelID,
		Query:       entry.Query,
		Text:        entry.Text,
		Suggestions: entry.Suggestions,
		Metadata:    entry.Metadata,
		DurationMs:  entry.Duration.Milliseconds(),
		TTFTMs:      entry.TTFT.Milliseconds(),
		TTFAMs:      entry.TTFA.Milliseconds(),
		WordCount:   entry.WordCount,
		CompletedAt: entry.CompletedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	member := goredis.Z{
		Score:  float64(entry.CompletedAt.UnixMilli()),
		Member: data,
	}

	pipe := d.client.TxPipeline()
	for _, key := range []string{d.allKey(), d.sessionKey(entry.SessionID)} {
		pipe.ZAdd(ctx, key, member)
		if d.ttl > 0 {
			pipe.Expire(ctx, key, d.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (d *Driver) List(ctx context.Context, sessionID string, limit int) ([]*history.Entry, error) {
	key := d.allKey()
	if sessionID != "" {
		key = d.sessionKey(sessionID)
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	vals, err := d.client.ZRevRange(ctx, key, 0, stop).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}

	out := make([]*history.Entry, 0, len(vals))
	for _, v := range vals {
		var r record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		out = append(out, &history.Entry{
			ID:          r.ID,
			SessionID:   r.SessionID,
			ChannelID:   r.ChannelID,
			Query:       r.Query,
			Text:        r.Text,
			Suggestions: r.Suggestions,
			Metadata:    r.Metadata,
			Duration:    time.Duration(r.DurationMs) * time.Millisecond,
			TTFT:        time.Duration(r.TTFTMs) * time.Millisecond,
			TTFA:        time.Duration(r.TTFAMs) * time.Millisecond,
			WordCount:   r.WordCount,
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}

// Close closes the client.
func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) allKey() string {
	return fmt.Sprintf("%s:history", d.prefix)
}

func (d *Driver) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:history", d.prefix, sessionID)
}
