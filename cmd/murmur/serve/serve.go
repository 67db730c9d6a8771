// Package servecmder provides the serve command, which runs the local mock
// streaming chat server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/config"
	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/server"
)

type serveCommander struct {
	listen        string
	tokenDelay    time.Duration
	shuffleWindow int
	seed          uint64

	debug  bool
	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run a local mock of the streaming chat backend.

The mock answers every query with a scripted reply: text tokens, out of order
audio fragments of a synthesized tone, follow-up suggestions, metadata and a
final done event. Queries starting with "!error" end with an error event.

Point the chat client at it with:
  murmur serve
  murmur chat --endpoint http://localhost:7878/v1/chat/stream`

const serveShortDesc string = "Run the mock streaming chat server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	cmd.Flags().DurationVar(&cmder.tokenDelay, "token-delay", 40*time.Millisecond, "Pause between streamed text tokens")
	cmd.Flags().IntVar(&cmder.shuffleWindow, "shuffle-window", 3, "How many consecutive audio fragments may arrive out of order (1 keeps them ordered)")
	cmd.Flags().Uint64Var(&cmder.seed, "seed", 0, "Seed for the audio fragment order")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithComponent("mock"),
	)

	format := audio.DefaultFormat
	if c.cfg.Audio.SampleRate > 0 {
		format.SampleRate = int(c.cfg.Audio.SampleRate)
	}

	srv := server.NewServer(server.Config{
		ListenAddr:    c.cfg.Server.Listen,
		TokenDelay:    c.tokenDelay,
		Format:        format,
		ShuffleWindow: c.shuffleWindow,
		Seed:          c.seed,
	}, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("mock server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return srv.Shutdown()
	}
}
