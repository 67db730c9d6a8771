// Package historycmder provides the history command for listing stored
// answers.
package historycmder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/murmur/pkg/cliui"
	"github.com/papercomputeco/murmur/pkg/config"
	"github.com/papercomputeco/murmur/pkg/history"
	historyprovider "github.com/papercomputeco/murmur/pkg/history/provider"
	"github.com/papercomputeco/murmur/pkg/utils"
)

type historyCommander struct {
	configDir string
	sessionID string
	limit     int
	full      bool

	historyProvider string
	sqlitePath      string
	postgresDSN     string
	redisAddr       string

	cfg *config.Config
	out io.Writer
}

const historyLongDesc string = `List answers stored by previous chat sessions, newest first.

Entries are read from the configured history store (sqlite by default, stored
as history.db in the .murmur/ directory).

Examples:
  murmur history
  murmur history --limit 5
  murmur history --session 3f2c... --full
  murmur history --history-provider postgres --postgres-dsn postgres://...`

const historyShortDesc string = "List stored answers"

var boundFlags = []string{
	config.FlagHistoryProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagRedisAddr,
}

const previewLen = 72

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
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
			cmder.out = cmd.OutOrStdout()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryProvider, &cmder.historyProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &cmder.redisAddr)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Only list answers from this session")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print full answers instead of a one-line preview")

	return cmd
}

func (c *historyCommander) run(ctx context.Context) error {
	store, err := historyprovider.New(ctx, c.cfg.History, c.configDir)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	if store == nil {
		fmt.Fprintf(c.out, "History is disabled (history.provider = %q).\n", c.cfg.History.Provider)
		return nil
	}
	defer store.Close()

	entries, err := store.List(ctx, c.sessionID, c.limit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No history yet.")
		return nil
	}

	fmt.Fprintln(c.out)
	for _, e := range entries {
		c.printEntry(e)
	}
	return nil
}

func (c *historyCommander) printEntry(e *history.Entry) {
	fmt.Fprintf(c.out, "  %s  %s  %s\n",
		cliui.DimStyle.Render(e.CompletedAt.Local().Format(time.DateTime)),
		cliui.HashStyle.Render(utils.Truncate(e.SessionID, 8)),
		cliui.DimStyle.Render(fmt.Sprintf("%s · %d words", cliui.FormatDuration(e.Duration), e.WordCount)),
	)

	text := e.Text
	if !c.full {
		text = utils.Truncate(strings.Join(strings.Fields(text), " "), previewLen)
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("you>"), e.Query)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.NameStyle.Render("murmur>"), cliui.AnswerStyle.Render(text))
	if c.full && len(e.Suggestions) > 0 {
		fmt.Fprint(c.out, cliui.Suggestions(e.Suggestions))
	}
	fmt.Fprintln(c.out)
}
