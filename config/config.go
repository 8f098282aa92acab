package config

import (
	"os"
	"time"

	"go.uber.org/config"

	"github.com/tnicklin/steward/events"
	"github.com/tnicklin/steward/history"
	"github.com/tnicklin/steward/logger"
	"github.com/tnicklin/steward/mirror"
	"github.com/tnicklin/steward/notify"
	"github.com/tnicklin/steward/store"
	"github.com/tnicklin/steward/watcher"
)

// ClockConfig holds time source configuration. An empty NTPServer keeps
// the system clock; setting one enables periodic NTP synchronization so
// last_saved stamps stay trustworthy on hosts with drifting clocks.
type ClockConfig struct {
	NTPServer    string        `yaml:"ntp_server"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger  logger.Config  `yaml:"logger"`
	Store   store.Config   `yaml:"store"`
	Watcher watcher.Config `yaml:"watcher"`
	History history.Config `yaml:"history"`
	Events  events.Config  `yaml:"events"`
	Notify  notify.Config  `yaml:"notify"`
	Mirror  mirror.Config  `yaml:"mirror"`
	Clock   ClockConfig    `yaml:"clock"`
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration with sensible defaults.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		return nil, err
	}
	return applyDefaults(cfg), nil
}

// Default returns the built-in configuration used when no config file
// exists at all.
func Default() *AppConfig {
	return applyDefaults(&AppConfig{})
}

func applyDefaults(cfg *AppConfig) *AppConfig {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if len(cfg.Logger.OutputPaths) == 0 {
		cfg.Logger.OutputPaths = []string{"stdout"}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = store.DefaultPath
	}
	if cfg.Watcher.Interval == 0 {
		cfg.Watcher.Interval = watcher.DefaultInterval
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/steward_history.db"
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = history.DefaultKeep
	}
	if cfg.Notify.Username == "" {
		cfg.Notify.Username = "steward"
	}
	if cfg.Clock.NTPServer != "" && cfg.Clock.SyncInterval == 0 {
		cfg.Clock.SyncInterval = 15 * time.Minute
	}

	return cfg
}
