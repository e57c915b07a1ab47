package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults should succeed: %v", err)
	}

	if cfg.Stream.Duration != 60*time.Second {
		t.Fatalf("unexpected default duration %s", cfg.Stream.Duration)
	}
	if cfg.Stream.Interval != 500*time.Millisecond {
		t.Fatalf("unexpected default interval %s", cfg.Stream.Interval)
	}
	if cfg.Detector.WindowSize != 10 {
		t.Fatalf("unexpected default window size %d", cfg.Detector.WindowSize)
	}
	if cfg.Detector.Threshold != 3.0 {
		t.Fatalf("unexpected default threshold %g", cfg.Detector.Threshold)
	}
	if cfg.Stream.Signal.PrimaryAmplitude != 10 || cfg.Stream.Signal.SeasonalFrequency != 0.05 {
		t.Fatalf("unexpected default signal shape: %+v", cfg.Stream.Signal)
	}
	if cfg.Database.Driver != "" {
		t.Fatalf("persistence should be off by default, got driver %q", cfg.Database.Driver)
	}
	if cfg.Alerting.Enabled || cfg.API.Enabled || cfg.Redis.Enabled {
		t.Fatal("optional subsystems should be off by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
stream:
  duration: 5s
  interval: 1s
detector:
  window_size: 3
  threshold: 2.5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.Duration != 5*time.Second || cfg.Stream.Interval != time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Stream)
	}
	if cfg.Detector.WindowSize != 3 || cfg.Detector.Threshold != 2.5 {
		t.Fatalf("file values not applied: %+v", cfg.Detector)
	}
	// Untouched keys keep their defaults.
	if cfg.App.Name != "streamwatch" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("an explicitly named but missing file should fail")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Stream.Duration = 0 }},
		{"negative duration", func(c *Config) { c.Stream.Duration = -time.Second }},
		{"zero interval", func(c *Config) { c.Stream.Interval = 0 }},
		{"negative noise span", func(c *Config) { c.Stream.Signal.NoiseSpan = -1 }},
		{"window size zero", func(c *Config) { c.Detector.WindowSize = 0 }},
		{"threshold zero", func(c *Config) { c.Detector.Threshold = 0 }},
		{"threshold negative", func(c *Config) { c.Detector.Threshold = -1 }},
		{"max data points zero", func(c *Config) { c.Export.MaxDataPoints = 0 }},
		{"telegram without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "1"
		}},
		{"telegram without chat id", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "token"
		}},
		{"kafka without brokers", func(c *Config) {
			c.Alerting.Kafka.Enabled = true
			c.Alerting.Kafka.Topic = "topic"
		}},
		{"kafka without topic", func(c *Config) {
			c.Alerting.Kafka.Enabled = true
			c.Alerting.Kafka.Brokers = []string{"localhost:9092"}
			c.Alerting.Kafka.Topic = ""
		}},
		{"api without addr", func(c *Config) {
			c.API.Enabled = true
			c.API.Addr = ""
		}},
		{"unknown database driver", func(c *Config) { c.Database.Driver = "oracle" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestValidateAcceptsKnownDrivers(t *testing.T) {
	// "postgresql" must stay accepted here because the storage factory
	// resolves it as an alias for the postgres backend.
	for _, driver := range []string{"", "postgres", "postgresql", "sqlite"} {
		cfg := validConfig()
		cfg.Database.Driver = driver
		if err := cfg.Validate(); err != nil {
			t.Fatalf("driver %q should be accepted: %v", driver, err)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ResolveMaxPoints(0); got != cfg.Export.MaxDataPoints {
		t.Fatalf("zero override should fall back to the config value, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(500); got != 500 {
		t.Fatalf("positive override should win, got %d", got)
	}
}
