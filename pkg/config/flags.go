package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "murmur chat" and "murmur history").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint        = "endpoint"
	FlagChannel         = "channel"
	FlagAudioOutput     = "audio-output"
	FlagFlushMS         = "flush-ms"
	FlagHistoryProvider = "history-provider"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagRedisAddr       = "redis-addr"
	FlagEventStreamProv = "eventstream-provider"
	FlagKafkaTopic      = "kafka-topic"
	FlagNATSURL         = "nats-url"
	FlagListen          = "listen"
)

// Flags is the registry shared by all murmur commands.
var Flags = FlagSet{
	FlagEndpoint:        {Name: "endpoint", Shorthand: "e", ViperKey: "client.endpoint", Description: "Streaming chat endpoint URL"},
	FlagChannel:         {Name: "channel", ViperKey: "client.channel_id", Description: "Channel identifier sent with every message"},
	FlagAudioOutput:     {Name: "audio-output", ViperKey: "audio.output", Description: "Audio output (speaker, none)"},
	FlagFlushMS:         {Name: "flush-ms", ViperKey: "audio.flush_ms", Description: "Milliseconds of audio buffered before playback"},
	FlagHistoryProvider: {Name: "history-provider", ViperKey: "history.provider", Description: "History store (sqlite, postgres, redis, memory, none)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "history.sqlite_path", Description: "Path to the SQLite history database"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "history.postgres_dsn", Description: "PostgreSQL connection string for history"},
	FlagRedisAddr:       {Name: "redis-addr", ViperKey: "history.redis_addr", Description: "Redis address for history"},
	FlagEventStreamProv: {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Completion event publisher (kafka, nats, none)"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic or NATS subject for completion events"},
	FlagNATSURL:         {Name: "nats-url", ViperKey: "eventstream.nats_url", Description: "NATS server URL for completion events"},
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the mock server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
