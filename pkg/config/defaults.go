package config

const (
	defaultServerListen = ":7878"
	defaultEndpoint     = "http://localhost:7878/v1/chat/stream"
	defaultChannelID    = "cli"

	defaultSampleRate  = 24000
	defaultFlushMS     = 1000
	defaultAudioOutput = "speaker"

	defaultHistoryProvider = "sqlite"
	defaultRedisAddr       = "localhost:6379"

	defaultEventStreamProvider = "none"
	defaultKafkaBroker         = "localhost:9092"
	defaultKafkaTopic          = "murmur.completions"
	defaultNATSURL             = "nats://127.0.0.1:4222"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Endpoint:   defaultEndpoint,
			ChannelID:  defaultChannelID,
			TTSEnabled: true,
		},
		Audio: AudioConfig{
			SampleRate: defaultSampleRate,
			FlushMS:    defaultFlushMS,
			Output:     defaultAudioOutput,
		},
		History: HistoryConfig{
			Provider:  defaultHistoryProvider,
			RedisAddr: defaultRedisAddr,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Brokers:  []string{defaultKafkaBroker},
			Topic:    defaultKafkaTopic,
			NATSURL:  defaultNATSURL,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
	}
}
