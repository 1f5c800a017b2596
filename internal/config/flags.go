package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagBackend     = flag.String("backend", "", "Compute backend: cpu or gl")
	flagFrames      = flag.Int("frames", -1, "Frames to run (0 = until interrupted)")
	flagWorkers     = flag.Int("workers", 0, "Skinning worker count")
	flagCalibration = flag.String("calibration", "", "Passthrough calibration file (enables passthrough)")
	flagWriteConfig = flag.String("write-config", "", "Write the effective config to this path and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigPath returns the --write-config target, empty when unset.
func WriteConfigPath() string {
	return *flagWriteConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.GPU.Debug = true
	}
	if *flagBackend != "" {
		cfg.Render.Backend = *flagBackend
	}
	if *flagFrames >= 0 {
		cfg.Render.Frames = *flagFrames
	}
	if *flagWorkers > 0 {
		cfg.Skinning.Workers = *flagWorkers
	}
	if *flagCalibration != "" {
		cfg.Passthrough.Calibration = *flagCalibration
		cfg.Passthrough.Enabled = true
	}
}
