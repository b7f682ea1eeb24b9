// Package config handles loading and managing mailfold configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the mailfold configuration.
type Config struct {
	DatabaseURL string   `toml:"database_url"`
	SearchLangs []string `toml:"search_langs"` // full-text languages, e.g. ["english", "russian"]
	PerPage     int      `toml:"per_page"`     // threads per listing page
	ThreadFew   int      `toml:"thread_few"`   // latest messages always shown in long threads

	// Computed, not from the config file.
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default mailfold home directory.
// Respects the MAILFOLD_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILFOLD_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailfold"
	}
	return filepath.Join(home, ".mailfold")
}

// Load reads the configuration from the specified file. If path is empty,
// the default location (<home>/config.toml) is used; home falls back to
// DefaultHome when empty. A missing file yields the defaults.
func Load(path, home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}
	if path == "" {
		path = filepath.Join(home, "config.toml")
	}

	cfg := &Config{HomeDir: home}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("MAILFOLD_DATABASE_URL")
	}
	if len(c.SearchLangs) == 0 {
		c.SearchLangs = []string{"english"}
	}
	if c.PerPage <= 0 {
		c.PerPage = 25
	}
	if c.ThreadFew <= 0 {
		c.ThreadFew = 5
	}
}

// EnsureHomeDir creates the home directory if missing.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0o755)
}

// ConfigFilePath returns the path of the config file within the home dir.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}
