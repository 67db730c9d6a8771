package logger

import (
	"io"
	"log/slog"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithPretty selects the charmbracelet/log handler for terminal output.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler. It wins over WithPretty.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter overrides the output writer, os.Stderr by default. Streamed
// answers own stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// WithComponent names the part of murmur doing the logging: "chat",
// "mock" and so on. Pretty output shows it as a prefix, the other handlers
// as a "component" attribute.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// WithSessionLog additionally writes every record, debug included, as JSON
// to w. chat --record uses it to keep a machine readable log next to the
// raw stream capture.
func WithSessionLog(w io.Writer) Option {
	return func(c *config) {
		c.sessionLog = w
	}
}
