package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive values can be overridden
// through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			WSURL     string `yaml:"ws_url"`
			RestURL   string `yaml:"rest_url"`
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Stream struct {
		PingIntervalSec     int `yaml:"ping_interval_sec"`
		PongTimeoutSec      int `yaml:"pong_timeout_sec"`
		ListenKeyRefreshMin int `yaml:"listen_key_refresh_min"`
		InboxSize           int `yaml:"inbox_size"`
	} `yaml:"stream"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Credentials must never be required in the file itself.
	overrideWithEnv(&cfg)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.Binance.WSURL, "ws://") && !strings.HasPrefix(c.API.Binance.WSURL, "wss://") {
		return fmt.Errorf("invalid Binance WS URL: %s", c.API.Binance.WSURL)
	}

	if c.Stream.PingIntervalSec <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	if c.Stream.PongTimeoutSec <= 0 {
		return fmt.Errorf("pong timeout must be positive")
	}
	if c.Stream.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Stream.PingIntervalSec == 0 {
		c.Stream.PingIntervalSec = 5
	}
	if c.Stream.PongTimeoutSec == 0 {
		c.Stream.PongTimeoutSec = 5
	}
	if c.Stream.ListenKeyRefreshMin == 0 {
		c.Stream.ListenKeyRefreshMin = 30
	}
	if c.Stream.InboxSize == 0 {
		c.Stream.InboxSize = 256
	}
}

// overrideWithEnv replaces settings with environment values when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		cfg.API.Binance.APISecret = secret
	}
}
