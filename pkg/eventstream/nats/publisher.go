// Package nats publishes completion events on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/papercomputeco/murmur/pkg/eventstream"
	"github.com/papercomputeco/murmur/pkg/logger"
)

const defaultConnectTimeout = 5 * time.Second

// Config holds NATS publisher settings.
type Config struct {
	// Servers are NATS URLs, e.g. nats://localhost:4222.
	Servers        []string
	Subject        string
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Publisher sends JSON encoded completion events with the event type and
// id as message headers.
type Publisher struct {
	conn    *natsgo.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to the configured servers.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats publisher requires at least one server")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats publisher requires a subject")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := natsgo.Connect(url,
		natsgo.Name("murmur"),
		natsgo.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Debug("connected to NATS", "servers", url)

	return &Publisher{
		conn:    conn,
		subject: cfg.Subject,
		logger:  log,
	}, nil
}

// PublishCompletion publishes event and waits for the server to
// acknowledge the flush.
func (p *Publisher) PublishCompletion(ctx context.Context, event *eventstream.CompletionEvent) error {
	if event == nil {
		return eventstream.ErrNilCompletionEvent
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	msg := natsgo.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("event_type", event.EventType)
	msg.Header.Set("event_id", event.EventID)
	msg.Header.Set("session_id", event.Source.SessionID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish completion event to %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush completion event to %s: %w", p.subject, err)
	}

	p.logger.Debug("published completion event",
		"subject", p.subject,
		"event_id", event.EventID,
		"session_id", event.Source.SessionID,
	)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
