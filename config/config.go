package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable of the bridge. Values come from
// defaults, an optional config.yaml next to the binary, and
// FACEBRIDGE_* environment variables, in increasing precedence.
type Config struct {
	Addr           string `mapstructure:"addr"`
	MaxConnections int64  `mapstructure:"max_connections"`
	NotifyBuffer   int    `mapstructure:"notify_buffer"`

	WorkerBin    string        `mapstructure:"worker_bin"`
	WorkerPort   int           `mapstructure:"worker_port"`
	ReadyMarker  string        `mapstructure:"ready_marker"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`

	LicenseURL      string        `mapstructure:"license_url"`
	LicenseKey      string        `mapstructure:"license_key"`
	LicenseInterval time.Duration `mapstructure:"license_interval"`

	DBPath string `mapstructure:"db_path"`

	Debug bool `mapstructure:"debug"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("max_connections", 1)
	v.SetDefault("notify_buffer", 64)
	v.SetDefault("worker_bin", "") // empty: resolve next to the host executable
	v.SetDefault("worker_port", 8765)
	v.SetDefault("ready_marker", "WebSocket server started successfully")
	v.SetDefault("ready_timeout", time.Minute)
	v.SetDefault("license_url", "http://localhost:3000")
	v.SetDefault("license_key", "TEST-123")
	v.SetDefault("license_interval", 20*time.Second)
	v.SetDefault("db_path", "facebridge.db")
	v.SetDefault("debug", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FACEBRIDGE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("max_connections must be at least 1, got %d", cfg.MaxConnections)
	}
	return &cfg, nil
}
