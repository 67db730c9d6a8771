// Package murmurcmder is the root murmur command.
package murmurcmder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/murmur/cmd/murmur/auth"
	chatcmder "github.com/papercomputeco/murmur/cmd/murmur/chat"
	configcmder "github.com/papercomputeco/murmur/cmd/murmur/config"
	historycmder "github.com/papercomputeco/murmur/cmd/murmur/history"
	servecmder "github.com/papercomputeco/murmur/cmd/murmur/serve"
	versioncmder "github.com/papercomputeco/murmur/cmd/version"
)

const murmurLongDesc string = `Murmur is a streaming voice chat client.

Questions are sent to a streaming chat backend; the answer text is shown as
it arrives and its synthesized speech is reassembled and played back.

Get started:
  murmur serve         Run the local mock streaming server
  murmur chat          Chat against the configured endpoint
  murmur history       List stored answers
  murmur config list   Show configuration`

const murmurShortDesc string = "Murmur - streaming voice chat"

func NewMurmurCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "murmur",
		Short:         murmurShortDesc,
		Long:          murmurLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(".env")
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .murmur/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
