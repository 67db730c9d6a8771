package server

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/murmur/pkg/logger"
)

// StreamPath is the chat streaming endpoint.
const StreamPath = "/v1/chat/stream"

// MetricsPath serves Prometheus metrics about streamed replies.
const MetricsPath = "/metrics"

// Server is the mock streaming chat server.
type Server struct {
	config  Config
	logger  *slog.Logger
	app     *fiber.App
	metrics *metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer creates a new mock server.
func NewServer(config Config, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	config = config.withDefaults()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		logger:  log,
		app:     app,
		metrics: newMetrics(),
		rng:     rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}

	app.Get("/ping", s.handlePing)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	app.Post(StreamPath, s.handleStream)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting mock stream server",
		"listen", s.config.ListenAddr,
		"endpoint", StreamPath,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
