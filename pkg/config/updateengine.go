package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

// UpdateEngineConfig configures the payload state machine in
// pkg/updateengine: the per-URL retry threshold, backoff shape, and the
// clock-drift tolerance used by its duration accounting.
type UpdateEngineConfig struct {
	// MaxFailuresPerURL is the number of retryable failures tolerated on
	// one URL before the sequencer advances to the next candidate.
	// Default: 10
	MaxFailuresPerURL int `mapstructure:"max_failures_per_url" yaml:"max_failures_per_url" validate:"gt=0"`

	// BackoffBase is validated but not passed to the engine: ToEngineConfig
	// drops it, and the exponential schedule's base is always one day.
	// Default: 24h
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base" validate:"gt=0"`

	// BackoffCapDays caps the exponential backoff window, in days.
	// Default: 16
	BackoffCapDays int `mapstructure:"backoff_cap_days" yaml:"backoff_cap_days" validate:"gt=0"`

	// BackoffJitterFrac is the uniform fuzz fraction applied to the
	// computed backoff duration. Default: 0.05 (±5%)
	BackoffJitterFrac float64 `mapstructure:"backoff_jitter_frac" yaml:"backoff_jitter_frac" validate:"gte=0,lt=1"`

	// ClockDriftSlack is the tolerated backwards wall-clock drift checked
	// by duration accounting, which clamps every negative duration to
	// zero, within the slack or beyond it. Default: 5m
	ClockDriftSlack time.Duration `mapstructure:"clock_drift_slack" yaml:"clock_drift_slack" validate:"gte=0"`

	// AllowHTTPDownloads permits plain-http payload URLs even on official
	// builds. Dev images flip this on to test against local servers.
	// Default: false
	AllowHTTPDownloads bool `mapstructure:"allow_http_downloads" yaml:"allow_http_downloads"`
}

// DefaultUpdateEngineConfig mirrors updateengine.DefaultConfig so a config
// file that omits this section still behaves the way spec.md describes.
func DefaultUpdateEngineConfig() UpdateEngineConfig {
	d := updateengine.DefaultConfig()
	return UpdateEngineConfig{
		MaxFailuresPerURL: d.MaxFailuresPerURL,
		BackoffBase:       24 * time.Hour,
		BackoffCapDays:    d.BackoffCapDays,
		BackoffJitterFrac: d.BackoffJitterFrac,
		ClockDriftSlack:   d.ClockDriftSlack,
	}
}

// ToEngineConfig converts the YAML-facing config into the plain value
// pkg/updateengine.New takes at construction.
func (c UpdateEngineConfig) ToEngineConfig() updateengine.Config {
	return updateengine.Config{
		MaxFailuresPerURL: c.MaxFailuresPerURL,
		BackoffCapDays:    c.BackoffCapDays,
		BackoffJitterFrac: c.BackoffJitterFrac,
		ClockDriftSlack:   c.ClockDriftSlack,
	}
}

// Validate runs go-playground/validator over just the update-engine
// section, for callers (such as tests) that build
// an UpdateEngineConfig without going through the wider Config.Load path.
func (c UpdateEngineConfig) Validate() error {
	return validator.New().Struct(c)
}
