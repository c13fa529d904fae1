// Package config loads and saves the CLI configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Proxy holds authenticated HTTP proxy settings.
type Proxy struct {
	URL      string `toml:"url"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Config is the CLI configuration persisted at ~/.o365/config.toml.
type Config struct {
	// ClientID and ClientSecret identify the OAuth application registered
	// at portal.azure.com > App registrations.
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`

	// TokenPath overrides the default token location (~/.o365_token).
	TokenPath string `toml:"token_path,omitempty"`

	// Username is the account for basic authentication. The password is
	// prompted for at run time and never stored.
	Username string `toml:"username,omitempty"`

	Proxy *Proxy `toml:"proxy,omitempty"`
}

// DefaultPath returns ~/.o365/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".o365", "config.toml"), nil
}

// Load reads the config file at path. A missing file yields an empty config
// rather than an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to path, creating the parent directory when needed.
// The file is written with 0600 permissions since it holds credentials.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
