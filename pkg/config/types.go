package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent murmur configuration stored as
// config.toml in the .murmur/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Audio       AudioConfig       `toml:"audio"`
	History     HistoryConfig     `toml:"history"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Server      ServerConfig      `toml:"server"`
}

// ClientConfig holds settings for the chat client.
type ClientConfig struct {
	// Endpoint is the full URL of the streaming chat endpoint.
	Endpoint   string `toml:"endpoint,omitempty"`
	ChannelID  string `toml:"channel_id,omitempty"`
	TTSEnabled bool   `toml:"tts_enabled"`
}

// AudioConfig holds speech playback settings.
type AudioConfig struct {
	SampleRate uint `toml:"sample_rate,omitempty"`
	// FlushMS is how much contiguous audio is buffered before a unit is
	// queued for playback.
	FlushMS uint `toml:"flush_ms,omitempty"`
	Muted   bool `toml:"muted"`
	// Output is "speaker" or "none".
	Output string `toml:"output,omitempty"`
}

// HistoryConfig selects where completed answers are stored.
type HistoryConfig struct {
	// Provider is one of "sqlite", "postgres", "redis", "memory" or "none".
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
}

// EventStreamConfig selects where completion events are published.
type EventStreamConfig struct {
	// Provider is "kafka", "nats" or "none".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	// Topic doubles as the NATS subject.
	Topic   string `toml:"topic,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
}

// ServerConfig holds settings for the local mock streaming server.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.channel_id": {
		get: func(c *Config) string { return c.Client.ChannelID },
		set: func(c *Config, v string) error { c.Client.ChannelID = v; return nil },
	},
	"client.tts_enabled": boolKey("client.tts_enabled", func(c *Config) *bool { return &c.Client.TTSEnabled }),
	"audio.sample_rate":  uintKey("audio.sample_rate", func(c *Config) *uint { return &c.Audio.SampleRate }),
	"audio.flush_ms":     uintKey("audio.flush_ms", func(c *Config) *uint { return &c.Audio.FlushMS }),
	"audio.muted":        boolKey("audio.muted", func(c *Config) *bool { return &c.Audio.Muted }),
	"audio.output": {
		get: func(c *Config) string { return c.Audio.Output },
		set: func(c *Config, v string) error {
			switch v {
			case "speaker", "none":
				c.Audio.Output = v
				return nil
			default:
				return fmt.Errorf("invalid value for audio.output: %q (available: speaker, none)", v)
			}
		},
	},
	"history.provider": {
		get: func(c *Config) string { return c.History.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "sqlite", "postgres", "redis", "memory", "none":
				c.History.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for history.provider: %q (available: sqlite, postgres, redis, memory, none)", v)
			}
		},
	},
	"history.sqlite_path": {
		get: func(c *Config) string { return c.History.SQLitePath },
		set: func(c *Config, v string) error { c.History.SQLitePath = v; return nil },
	},
	"history.postgres_dsn": {
		get: func(c *Config) string { return c.History.PostgresDSN },
		set: func(c *Config, v string) error { c.History.PostgresDSN = v; return nil },
	},
	"history.redis_addr": {
		get: func(c *Config) string { return c.History.RedisAddr },
		set: func(c *Config, v string) error { c.History.RedisAddr = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "kafka", "nats", "none":
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: kafka, nats, none)", v)
			}
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = SplitList(v)
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"eventstream.nats_url": {
		get: func(c *Config) string { return c.EventStream.NATSURL },
		set: func(c *Config, v string) error { c.EventStream.NATSURL = v; return nil },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
