package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultNotifyCooldownMs = 2000
	DefaultFetchTimeoutMs   = 10000
	DefaultSyncIntervalMs   = 30000
)

// Config represents the global ~/.chatty/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// Remote message API.
	RemoteURL string `toml:"remote_url"`
	AuthToken string `toml:"auth_token"`
	UserID    string `toml:"user_id"`

	// Push event source.
	PushURL string `toml:"push_url"`

	NotifyCooldownMs int `toml:"notify_cooldown_ms"`
	FetchTimeoutMs   int `toml:"fetch_timeout_ms"`
	SyncIntervalMs   int `toml:"sync_interval_ms"`
}

// Default returns a config with all defaults applied and no remote
// endpoints configured.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.NotifyCooldownMs <= 0 {
		c.NotifyCooldownMs = DefaultNotifyCooldownMs
	}
	if c.FetchTimeoutMs <= 0 {
		c.FetchTimeoutMs = DefaultFetchTimeoutMs
	}
	if c.SyncIntervalMs <= 0 {
		c.SyncIntervalMs = DefaultSyncIntervalMs
	}
}
