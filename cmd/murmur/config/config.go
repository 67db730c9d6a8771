// Package configcmder provides the config command for managing persistent
// murmur configuration stored in the .murmur/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent murmur configuration.

Configuration is stored as config.toml in the .murmur/ directory and provides
default values for command flags. CLI flags and MURMUR_ environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.endpoint, client.channel_id, client.tts_enabled,
  audio.sample_rate, audio.flush_ms, audio.muted, audio.output,
  history.provider, history.sqlite_path, history.postgres_dsn,
  history.redis_addr, eventstream.provider, eventstream.brokers,
  eventstream.topic, eventstream.nats_url,
  server.listen

Use subcommands to get, set, or list configuration values:
  murmur config set <key> <value>    Set a configuration value
  murmur config get <key>            Get a configuration value
  murmur config list                 List all configuration values

Examples:
  murmur config set client.endpoint https://chat.example.com/v1/chat/stream
  murmur config set audio.flush_ms 500
  murmur config get history.provider
  murmur config list`

const configShortDesc string = "Manage persistent murmur configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
