package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"stream-anomaly-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Detector DetectorConfig `mapstructure:"detector"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	API      APIConfig      `mapstructure:"api"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StreamConfig governs the synthetic signal source.
type StreamConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	Interval time.Duration `mapstructure:"interval"`
	Seed     int64         `mapstructure:"seed"`
	Signal   SignalConfig  `mapstructure:"signal"`
}

// SignalConfig shapes the generated waveform.
type SignalConfig struct {
	PrimaryAmplitude  float64 `mapstructure:"primary_amplitude"`
	PrimaryFrequency  float64 `mapstructure:"primary_frequency"`
	SeasonalAmplitude float64 `mapstructure:"seasonal_amplitude"`
	SeasonalFrequency float64 `mapstructure:"seasonal_frequency"`
	NoiseSpan         float64 `mapstructure:"noise_span"`
}

// DetectorConfig tunes the rolling Z-score detector.
type DetectorConfig struct {
	WindowSize int     `mapstructure:"window_size"`
	Threshold  float64 `mapstructure:"threshold"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the latest-result cache.
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// KafkaConfig describes the Kafka delivery channel.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// APIConfig governs the embedded HTTP/WebSocket server.
type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	LiveBuffer   int           `mapstructure:"live_buffer"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STREAMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "streamwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("stream.duration", "60s")
	v.SetDefault("stream.interval", "500ms")
	v.SetDefault("stream.seed", int64(0))
	v.SetDefault("stream.signal.primary_amplitude", 10.0)
	v.SetDefault("stream.signal.primary_frequency", 0.2)
	v.SetDefault("stream.signal.seasonal_amplitude", 5.0)
	v.SetDefault("stream.signal.seasonal_frequency", 0.05)
	v.SetDefault("stream.signal.noise_span", 1.0)

	v.SetDefault("detector.window_size", 10)
	v.SetDefault("detector.threshold", 3.0)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "1m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.kafka.enabled", false)
	v.SetDefault("alerting.kafka.topic", "streamwatch.anomalies")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.live_buffer", 256)
	v.SetDefault("api.ping_interval", "30s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks before any value is produced.
func (c *Config) Validate() error {
	if c.Stream.Duration <= 0 {
		return fmt.Errorf("stream.duration must be greater than zero")
	}
	if c.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be greater than zero")
	}
	if c.Stream.Signal.NoiseSpan < 0 {
		return fmt.Errorf("stream.signal.noise_span cannot be negative")
	}
	if c.Detector.WindowSize < 1 {
		return fmt.Errorf("detector.window_size must be at least 1")
	}
	if c.Detector.Threshold <= 0 {
		return fmt.Errorf("detector.threshold must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}
	if c.Alerting.Kafka.Enabled {
		if len(c.Alerting.Kafka.Brokers) == 0 {
			return fmt.Errorf("alerting.kafka.brokers must be configured")
		}
		if c.Alerting.Kafka.Topic == "" {
			return fmt.Errorf("alerting.kafka.topic must be configured")
		}
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api.addr must be configured when api.enabled")
	}
	switch c.Database.Driver {
	case "", "postgres", "postgresql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
