package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// chatRequest is the body the client posts to StreamPath.
type chatRequest struct {
	ChannelID  string `json:"channelId"`
	Query      string `json:"query"`
	SessionID  string `json:"sessionId"`
	TTSEnabled bool   `json:"ttsEnabled"`
	Phone      string `json:"phone,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStream answers a chat request with a scripted SSE stream.
func (s *Server) handleStream(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "query is required"})
	}

	events := newScript(req.Query).events(s.config, req.SessionID, req.TTSEnabled, s.forkRand())

	s.logger.Info("streaming scripted reply",
		"session_id", req.SessionID,
		"channel_id", req.ChannelID,
		"tts", req.TTSEnabled,
		"events", len(events),
		"authenticated", c.Get(fiber.HeaderAuthorization) != "",
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	delay := s.config.TokenDelay
	log := s.logger
	m := s.metrics
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		finished := m.streamStarted()
		for i, ev := range events {
			if err := writeEvent(w, ev); err != nil {
				log.Debug("client went away", "session_id", req.SessionID, "sent", i, "error", err)
				finished("aborted")
				return
			}
			m.eventWritten(ev.Type)
			if delay > 0 && ev.Type == "text-token" {
				time.Sleep(delay)
			}
		}
		finished(events[len(events)-1].Type)
	})

	return nil
}

// forkRand derives a per-request generator so concurrent streams do not
// share one.
func (s *Server) forkRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// writeEvent frames ev as one SSE event and flushes it.
func writeEvent(w *bufio.Writer, ev event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
