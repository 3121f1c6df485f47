package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority over the standard locations
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the cooker or player cannot run with.
func (c *Config) Validate() error {
	if c.Cook.BufferSize <= 0 {
		return fmt.Errorf("cook.buffer_size must be positive, got %d", c.Cook.BufferSize)
	}
	switch c.Cook.DefaultScheme {
	case "raw", "quantized":
	default:
		return fmt.Errorf("cook.default_scheme must be raw or quantized, got %q", c.Cook.DefaultScheme)
	}
	if c.Playback.TickRate <= 0 {
		return fmt.Errorf("playback.tick_rate must be positive, got %v", c.Playback.TickRate)
	}
	if c.Playback.Duration < 0 {
		return fmt.Errorf("playback.duration must not be negative, got %v", c.Playback.Duration)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./animtool.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "animtool")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "animtool")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "animtool")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "animtool")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
