// Package config handles animtool configuration loading and management.
package config

// Config holds all animtool settings.
type Config struct {
	Cook     CookConfig     `yaml:"cook"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CookConfig holds settings for turning projects into cooked buffers.
type CookConfig struct {
	BufferSize    int    `yaml:"buffer_size"`    // Fixed destination capacity in bytes
	DefaultScheme string `yaml:"default_scheme"` // Clip scheme when a clip names none: raw or quantized
}

// PlaybackConfig holds settings for offline graph playback.
type PlaybackConfig struct {
	TickRate float32 `yaml:"tick_rate"` // Ticks per second
	Duration float32 `yaml:"duration"`  // Seconds to simulate
	Seed     int64   `yaml:"seed"`      // Seed for random choice nodes
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cook: CookConfig{
			BufferSize:    4 << 20,
			DefaultScheme: "quantized",
		},
		Playback: PlaybackConfig{
			TickRate: 60,
			Duration: 1,
			Seed:     1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// TickDelta returns the seconds advanced per playback tick.
func (p PlaybackConfig) TickDelta() float32 {
	if p.TickRate <= 0 {
		return 0
	}
	return 1 / p.TickRate
}
