// Package config handles loading and resolving the web-chat channel
// configuration. Config is stored at ~/.webchat-channel/config.yaml and may be
// overridden with the WEBCHAT_CHANNEL_CONFIG environment variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the top-level plugin configuration.
type Config struct {
	Channels ChannelsConfig `yaml:"channels"`
}

// ChannelsConfig mirrors the host's channels section; this plugin only reads
// its own subtree.
type ChannelsConfig struct {
	WebChat WebChatConfig `yaml:"webchat"`
}

// WebChatConfig configures the web-chat channel. The top level doubles as the
// "default" account; additional accounts live in Accounts.
type WebChatConfig struct {
	// Enabled is a tri-state: nil means unset, and named accounts inherit
	// the channel-level flag only when theirs is unset.
	Enabled        *bool                     `yaml:"enabled"`
	WSURL          string                    `yaml:"wsUrl"`
	APIURL         string                    `yaml:"apiUrl"`
	APIToken       string                    `yaml:"apiToken"`
	ConnectionMode string                    `yaml:"connectionMode"` // "websocket" | "http"
	PollInterval   int                       `yaml:"pollInterval"`   // milliseconds, HTTP mode
	AutoReconnect  *bool                     `yaml:"autoReconnect"`
	Adapter        string                    `yaml:"adapter"` // "native" | "ruyuan"
	Ruyuan         *RuyuanConfig             `yaml:"ruyuan"`
	Accounts       map[string]*WebChatConfig `yaml:"accounts"`
}

// RuyuanConfig is the Ruyuan-IM adapter sub-configuration.
type RuyuanConfig struct {
	UserID            int64  `yaml:"userId"`
	ClientType        int    `yaml:"clientType"` // 1=web, 2=ios, 3=android
	Token             string `yaml:"token"`
	HeartbeatInterval int    `yaml:"heartbeatInterval"` // milliseconds
}

// Adapter selectors.
const (
	AdapterNative = "native"
	AdapterRuyuan = "ruyuan"
)

// Connection modes.
const (
	ModeWebSocket = "websocket"
	ModeHTTP      = "http"
)

// DefaultAccountID is the account represented by the top-level config block.
const DefaultAccountID = "default"

const minPollInterval = 1000

// ConfigDir returns the plugin config directory (~/.webchat-channel).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".webchat-channel"
	}
	return filepath.Join(home, ".webchat-channel")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads and parses the config from disk. A missing file yields defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	path := ConfigPath()
	if envPath := os.Getenv("WEBCHAT_CHANNEL_CONFIG"); envPath != "" {
		path = envPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides merges environment variables into configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEBCHAT_API_TOKEN"); v != "" {
		cfg.Channels.WebChat.APIToken = v
	}
	if v := os.Getenv("WEBCHAT_WS_URL"); v != "" {
		cfg.Channels.WebChat.WSURL = v
	}
	if v := os.Getenv("WEBCHAT_API_URL"); v != "" {
		cfg.Channels.WebChat.APIURL = v
	}
}
