// Package provider builds the configured eventstream publisher.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/murmur/pkg/config"
	"github.com/papercomputeco/murmur/pkg/eventstream"
	"github.com/papercomputeco/murmur/pkg/eventstream/kafka"
	"github.com/papercomputeco/murmur/pkg/eventstream/nats"
	"github.com/papercomputeco/murmur/pkg/eventstream/nop"
)

const (
	Kafka = "kafka"
	NATS  = "nats"
	None  = "none"
)

// New returns the publisher selected by cfg.Provider. Disabled publishing
// yields the no-op publisher.
func New(cfg config.EventStreamConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", None:
		return nop.NewPublisher(), nil
	case Kafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Logger:  log,
		})
	case NATS:
		return nats.NewPublisher(nats.Config{
			Servers: config.SplitList(cfg.NATSURL),
			Subject: cfg.Topic,
			Logger:  log,
		})
	default:
		return nil, fmt.Errorf("unknown eventstream provider %q", cfg.Provider)
	}
}
