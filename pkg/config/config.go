// Package config handles loading and saving tusk-dashboard configuration.
//
// The file lives at $XDG_CONFIG_HOME/tusk-dashboard/config.yaml, falling
// back to ~/.config/tusk-dashboard/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "tusk-dashboard"

// Defaults.
const (
	DefaultDBPath         = "tusk/tasks.db"
	DefaultOutput         = "tusk/dashboard.html"
	DefaultTitle          = "Tusk Task Metrics"
	DefaultMermaidCDN     = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js"
	DefaultDebounceMS     = 200
	DefaultPollIntervalMS = 2000
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// WatchConfig controls --watch mode.
type WatchConfig struct {
	DebounceMS     int  `yaml:"debounce_ms,omitempty"`
	PollIntervalMS int  `yaml:"poll_interval_ms,omitempty"`
	ForcePoll      bool `yaml:"force_poll,omitempty"`
}

// Debounce returns the debounce window as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// PollInterval returns the polling interval as a duration.
func (w WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// Config is the top-level configuration.
type Config struct {
	DBPath     string      `yaml:"db_path,omitempty"`
	Output     string      `yaml:"output,omitempty"`
	Title      string      `yaml:"title,omitempty"`
	MermaidCDN string      `yaml:"mermaid_cdn,omitempty"`
	Watch      WatchConfig `yaml:"watch,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:     DefaultDBPath,
		Output:     DefaultOutput,
		Title:      DefaultTitle,
		MermaidCDN: DefaultMermaidCDN,
		Watch: WatchConfig{
			DebounceMS:     DefaultDebounceMS,
			PollIntervalMS: DefaultPollIntervalMS,
		},
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Keys absent from the file
// keep their defaults; a missing file yields DefaultConfig.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.Output = expandHome(cfg.Output)

	return cfg, nil
}

// Validate reports the first problem with cfg.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	case strings.TrimSpace(c.Output) == "":
		return fmt.Errorf("%w: output is empty", ErrInvalid)
	case c.Watch.DebounceMS <= 0:
		return fmt.Errorf("%w: watch.debounce_ms must be positive, got %d", ErrInvalid, c.Watch.DebounceMS)
	case c.Watch.PollIntervalMS <= 0:
		return fmt.Errorf("%w: watch.poll_interval_ms must be positive, got %d", ErrInvalid, c.Watch.PollIntervalMS)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
