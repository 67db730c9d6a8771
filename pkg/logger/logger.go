// Package logger provides opinionated logging capabilities for murmur
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level      slog.Level
	pretty     bool
	json       bool
	component  string
	writer     io.Writer
	sessionLog io.Writer
}

// New creates a *slog.Logger. The default is a plain text handler on
// os.Stderr at Info level.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	w := cfg.writer
	if w == nil {
		w = os.Stderr
	}

	h := handlerFor(w, cfg.level, cfg.pretty && !cfg.json, cfg.json, cfg.component)
	if cfg.sessionLog == nil {
		return slog.New(h)
	}

	session := handlerFor(cfg.sessionLog, slog.LevelDebug, false, true, cfg.component)
	return Multi(slog.New(h), slog.New(session))
}

func handlerFor(w io.Writer, level slog.Level, pretty, json bool, component string) slog.Handler {
	if pretty {
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
			Prefix:          component,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	if component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", component)})
	}
	return h
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
