package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittofs/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyStoreDefaults(&cfg.Store)
	applyUpdateEngineDefaults(&cfg.UpdateEngine)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetricsDefaults sets metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyStoreDefaults sets persisted-store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/dittofs/updateengine"
	}
	if cfg.PowerwashSafePath == "" {
		cfg.PowerwashSafePath = "/var/lib/dittofs-powerwash/updateengine"
	}
	if cfg.ValueLogFileSize == 0 {
		cfg.ValueLogFileSize = 64 * bytesize.MiB
	}
}

// applyUpdateEngineDefaults fills in any zero-valued UpdateEngine fields.
func applyUpdateEngineDefaults(cfg *UpdateEngineConfig) {
	d := DefaultUpdateEngineConfig()
	if cfg.MaxFailuresPerURL == 0 {
		cfg.MaxFailuresPerURL = d.MaxFailuresPerURL
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = d.BackoffBase
	}
	if cfg.BackoffCapDays == 0 {
		cfg.BackoffCapDays = d.BackoffCapDays
	}
	if cfg.BackoffJitterFrac == 0 {
		cfg.BackoffJitterFrac = d.BackoffJitterFrac
	}
	if cfg.ClockDriftSlack == 0 {
		cfg.ClockDriftSlack = d.ClockDriftSlack
	}
}

// GetDefaultConfig returns a fully-defaulted configuration, the same value
// Load produces when no config file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
