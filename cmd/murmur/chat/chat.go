// Package chatcmder provides the chat command: an interactive loop that
// streams answers from the chat backend, prints text as it arrives and
// plays the synthesized speech.
package chatcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/cliui"
	"github.com/papercomputeco/murmur/pkg/config"
	"github.com/papercomputeco/murmur/pkg/dotdir"
	esprovider "github.com/papercomputeco/murmur/pkg/eventstream/provider"
	historyprovider "github.com/papercomputeco/murmur/pkg/history/provider"
	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/pkg/session"
	"github.com/papercomputeco/murmur/pkg/stream"
	"github.com/papercomputeco/murmur/pkg/utils"
	"github.com/papercomputeco/murmur/pkg/worker"
)

type chatCommander struct {
	configDir string
	debug     bool
	noTTS     bool
	record    string
	markdown  bool
	sessionID string

	// flag targets, bound to viper keys
	endpoint        string
	channel         string
	audioOutput     string
	flushMS         uint
	historyProvider string
	sqlitePath      string
	postgresDSN     string
	redisAddr       string
	esProvider      string
	kafkaTopic      string
	natsURL         string

	cfg    *config.Config
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive voice chat session.

Each line you type is sent to the streaming chat endpoint. The answer is
printed as it streams in and its synthesized speech is played through the
speaker. Follow-up suggestions are listed after each answer.

Completed answers are stored in the history store and, when configured,
published to Kafka.

Commands inside the session:
  /retry /stop /pause /resume /mute /unmute /help /exit

Press Ctrl+C to stop the current answer, or to quit when idle.

Examples:
  murmur chat
  murmur chat --endpoint http://localhost:7878/v1/chat/stream
  murmur chat --no-tts --markdown
  murmur chat --record session.sse`

const chatShortDesc string = "Interactive streaming voice chat"

var boundFlags = []string{
	config.FlagEndpoint,
	config.FlagChannel,
	config.FlagAudioOutput,
	config.FlagFlushMS,
	config.FlagHistoryProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagRedisAddr,
	config.FlagEventStreamProv,
	config.FlagKafkaTopic,
	config.FlagNATSURL,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, boundFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagChannel, &cmder.channel)
	config.AddStringFlag(cmd, config.Flags, config.FlagAudioOutput, &cmder.audioOutput)
	config.AddUintFlag(cmd, config.Flags, config.FlagFlushMS, &cmder.flushMS)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryProvider, &cmder.historyProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &cmder.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStreamProv, &cmder.esProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagNATSURL, &cmder.natsURL)
	cmd.Flags().BoolVar(&cmder.noTTS, "no-tts", false, "Ask for text only, without synthesized speech")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Record the raw event stream to this file (JSON logs go to <file>.log)")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render final answers as markdown when stdout is a terminal")
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Conversation id to continue (default: new random id)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logOpts := []logger.Option{
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithComponent("chat"),
		logger.WithWriter(c.errOut),
	}

	var streamOpts []stream.Option
	if c.record != "" {
		raw, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("creating stream recording: %w", err)
		}
		defer raw.Close()

		logFile, err := os.Create(c.record + ".log")
		if err != nil {
			return fmt.Errorf("creating session log: %w", err)
		}
		defer logFile.Close()

		logOpts = append(logOpts, logger.WithSessionLog(logFile))
		streamOpts = append(streamOpts, stream.WithTee(raw))
	}
	c.logger = logger.New(logOpts...)

	identity, err := dotdir.NewManager().LoadAuthState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading auth state: %w", err)
	}
	if identity.Phone() == "" {
		c.logger.Warn("no identity stored, requests are anonymous (run murmur auth login)")
	}

	store, err := historyprovider.New(ctx, c.cfg.History, c.configDir)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	publisher, err := esprovider.New(c.cfg.EventStream, c.logger)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		History:   store,
		Publisher: publisher,
		Client:    utils.UserAgent(),
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	format := audio.Format{
		SampleRate:    int(c.cfg.Audio.SampleRate),
		Channels:      audio.DefaultFormat.Channels,
		BitsPerSample: audio.DefaultFormat.BitsPerSample,
	}
	tts := c.cfg.Client.TTSEnabled && !c.noTTS

	player, closePlayer, err := newPlayer(c.cfg.Audio, format, tts, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = closePlayer() }()

	markdown := c.markdown && isTerminal(c.out)
	p := newPrinter(c.out, markdown, c.logger)

	muted := c.cfg.Audio.Muted
	threshold := format.BytesFor(time.Duration(c.cfg.Audio.FlushMS) * time.Millisecond)
	log := c.logger

	ctrl := session.New(session.Config{
		Endpoint:   c.cfg.Client.Endpoint,
		ChannelID:  c.cfg.Client.ChannelID,
		TTSEnabled: tts,
		Identity:   identity,
		Recorder:   pool,
		Observer:   p,
		SessionID:  c.sessionID,
		Logger:     c.logger,
		EngineFactory: func(listener func(audio.State)) *audio.Engine {
			e := audio.NewEngine(player,
				audio.WithFormat(format),
				audio.WithFlushThreshold(threshold),
				audio.WithLogger(log),
				audio.WithStateListener(listener),
			)
			if muted {
				e.SetMuted(true)
			}
			return e
		},
	}, session.WithStreamOptions(streamOpts...))
	defer ctrl.Close()

	p.printf("\n  %s %s\n  %s %s\n\n",
		cliui.KeyStyle.Render("Endpoint:"),
		cliui.NameStyle.Render(c.cfg.Client.Endpoint),
		cliui.KeyStyle.Render("Session: "),
		cliui.HashStyle.Render(ctrl.SessionID()),
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)

	r := &repl{
		ctrl:    ctrl,
		printer: p,
		in:      c.in,
		signals: signals,
	}
	return r.run(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
