package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/murmur/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MURMUR_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MURMUR_CLIENT_ENDPOINT, MURMUR_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MURMUR_CLIENT_ENDPOINT, MURMUR_HISTORY_PROVIDER, etc.
	v.SetEnvPrefix("MURMUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective configuration.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			Endpoint:   v.GetString("client.endpoint"),
			ChannelID:  v.GetString("client.channel_id"),
			TTSEnabled: v.GetBool("client.tts_enabled"),
		},
		Audio: AudioConfig{
			SampleRate: v.GetUint("audio.sample_rate"),
			FlushMS:    v.GetUint("audio.flush_ms"),
			Muted:      v.GetBool("audio.muted"),
			Output:     v.GetString("audio.output"),
		},
		History: HistoryConfig{
			Provider:    v.GetString("history.provider"),
			SQLitePath:  v.GetString("history.sqlite_path"),
			PostgresDSN: v.GetString("history.postgres_dsn"),
			RedisAddr:   v.GetString("history.redis_addr"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  brokers(v),
			Topic:    v.GetString("eventstream.topic"),
			NATSURL:  v.GetString("eventstream.nats_url"),
		},
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
	}
}

// brokers accepts both a TOML array and a comma separated env value.
func brokers(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("eventstream.brokers") {
		out = append(out, SplitList(b)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.channel_id", d.Client.ChannelID)
	v.SetDefault("client.tts_enabled", d.Client.TTSEnabled)

	// Audio
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.flush_ms", d.Audio.FlushMS)
	v.SetDefault("audio.muted", d.Audio.Muted)
	v.SetDefault("audio.output", d.Audio.Output)

	// History
	v.SetDefault("history.provider", d.History.Provider)
	v.SetDefault("history.sqlite_path", d.History.SQLitePath)
	v.SetDefault("history.postgres_dsn", d.History.PostgresDSN)
	v.SetDefault("history.redis_addr", d.History.RedisAddr)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
	v.SetDefault("eventstream.nats_url", d.EventStream.NATSURL)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
}
