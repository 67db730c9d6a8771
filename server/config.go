// Package server provides a mock streaming chat server. It speaks the same
// SSE protocol as the production backend and is used for local demos and
// end-to-end tests of the client pipeline.
package server

import (
	"time"

	"github.com/papercomputeco/murmur/pkg/audio"
)

// Config is the mock server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7878")
	ListenAddr string

	// TokenDelay is the pause between text tokens.
	TokenDelay time.Duration

	// Format is the PCM format of synthesized audio.
	Format audio.Format

	// FragmentDuration is the length of each audio fragment.
	FragmentDuration time.Duration

	// ShuffleWindow is how many consecutive fragments may be reordered, to
	// mimic parallel synthesis. Zero or one sends them in order.
	ShuffleWindow int

	// Seed makes the fragment order reproducible.
	Seed uint64
}

func (c Config) withDefaults() Config {
	if c.Format == (audio.Format{}) {
		c.Format = audio.DefaultFormat
	}
	if c.FragmentDuration <= 0 {
		c.FragmentDuration = 100 * time.Millisecond
	}
	if c.ShuffleWindow == 0 {
		c.ShuffleWindow = 3
	}
	return c
}
