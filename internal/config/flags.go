package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagBuffer = flag.Int("buffer", 0, "Cook buffer capacity in bytes")
	flagTick   = flag.Float64("tick", 0, "Playback tick rate in Hz")
	flagSeed   = flag.Int64("seed", 0, "Seed for random choice nodes")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagBuffer > 0 {
		cfg.Cook.BufferSize = *flagBuffer
	}
	if *flagTick > 0 {
		cfg.Playback.TickRate = float32(*flagTick)
	}
	if *flagSeed != 0 {
		cfg.Playback.Seed = *flagSeed
	}
}
