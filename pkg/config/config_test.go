package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/murmur/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[client]
endpoint = "https://chat.example.com/stream"
channel_id = "kiosk"
tts_enabled = false

[audio]
sample_rate = 16000
flush_ms = 500
muted = true
output = "none"

[history]
provider = "postgres"
sqlite_path = "/tmp/murmur.sqlite"
postgres_dsn = "postgres://localhost/murmur"
redis_addr = "cache:6379"

[eventstream]
provider = "kafka"
brokers = ["k1:9092", "k2:9092"]
topic = "answers"
nats_url = "nats://bus:4222"

[server]
listen = ":9999"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client).To(Equal(config.ClientConfig{
				Endpoint:   "https://chat.example.com/stream",
				ChannelID:  "kiosk",
				TTSEnabled: false,
			}))
			Expect(cfg.Audio).To(Equal(config.AudioConfig{
				SampleRate: 16000,
				FlushMS:    500,
				Muted:      true,
				Output:     "none",
			}))
			Expect(cfg.History).To(Equal(config.HistoryConfig{
				Provider:    "postgres",
				SQLitePath:  "/tmp/murmur.sqlite",
				PostgresDSN: "postgres://localhost/murmur",
				RedisAddr:   "cache:6379",
			}))
			Expect(cfg.EventStream).To(Equal(config.EventStreamConfig{
				Provider: "kafka",
				Brokers:  []string{"k1:9092", "k2:9092"},
				Topic:    "answers",
				NATSURL:  "nats://bus:4222",
			}))
			Expect(cfg.Server.Listen).To(Equal(":9999"))
		})

		It("keeps defaults for omitted fields", func() {
			writeConfig(`[client]
channel_id = "kiosk"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Client.ChannelID).To(Equal("kiosk"))
			Expect(cfg.Client.Endpoint).To(Equal(defaults.Client.Endpoint))
			Expect(cfg.Client.TTSEnabled).To(BeTrue())
			Expect(cfg.Audio).To(Equal(defaults.Audio))
			Expect(cfg.History).To(Equal(defaults.History))
			Expect(cfg.EventStream).To(Equal(defaults.EventStream))
			Expect(cfg.Server).To(Equal(defaults.Server))
		})

		It("fills explicitly empty values with defaults", func() {
			writeConfig(`[client]
endpoint = ""

[audio]
flush_ms = 0
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Client.Endpoint).To(Equal(defaults.Client.Endpoint))
			Expect(cfg.Audio.FlushMS).To(Equal(defaults.Audio.FlushMS))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 99"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Client.ChannelID = "saved"
			cfg.Audio.Muted = true
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})

		It("restricts file permissions", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(config.NewDefaultConfig())).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("client.endpoint", "http://remote/stream")).To(Succeed())

			v, err := c.GetConfigValue("client.endpoint")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("http://remote/stream"))
		})

		It("sets a bool config key", func() {
			Expect(c.SetConfigValue("client.tts_enabled", "false")).To(Succeed())

			v, err := c.GetConfigValue("client.tts_enabled")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("false"))
		})

		It("sets a uint config key", func() {
			Expect(c.SetConfigValue("audio.flush_ms", "250")).To(Succeed())

			v, err := c.GetConfigValue("audio.flush_ms")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("250"))
		})

		It("sets a list config key", func() {
			Expect(c.SetConfigValue("eventstream.brokers", "a:9092, b:9092")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.EventStream.Brokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(HaveOccurred())
			},
			Entry("unknown key", "proxy.upstream", "x"),
			Entry("bad bool", "audio.muted", "loud"),
			Entry("bad uint", "audio.flush_ms", "-1"),
			Entry("unknown output", "audio.output", "headphones"),
			Entry("unknown history provider", "history.provider", "mongo"),
			Entry("unknown eventstream provider", "eventstream.provider", "rabbitmq"),
		)

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("client.channel_id", "first")).To(Succeed())
			Expect(c.SetConfigValue("server.listen", ":1234")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.ChannelID).To(Equal("first"))
			Expect(cfg.Server.Listen).To(Equal(":1234"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("audio.output")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("speaker"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("history.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nonexistent")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(16))
			Expect(keys[0]).To(Equal("client.endpoint"))
			Expect(keys[len(keys)-1]).To(Equal("server.listen"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})
	})

	Describe("IsValidConfigKey", func() {
		It("returns false for invalid keys", func() {
			Expect(config.IsValidConfigKey("endpoint")).To(BeFalse())
			Expect(config.IsValidConfigKey("")).To(BeFalse())
		})
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(&config.Config{}))
	})

	It("rejects unsupported config version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 2"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SplitList", func() {
	It("drops blanks and trims", func() {
		Expect(config.SplitList(" a, ,b,")).To(Equal([]string{"a", "b"}))
		Expect(config.SplitList("")).To(BeNil())
	})
})
