package updateengine

import "time"

// Config bundles every tunable the core needs at construction time — the
// design notes call for "a single configuration value passed at
// construction; do not scatter."
type Config struct {
	// MaxFailuresPerURL is the per-URL retry threshold before the
	// sequencer advances to the next candidate URL.
	MaxFailuresPerURL int
	// BackoffCapDays is the maximum backoff window, in days.
	BackoffCapDays int
	// BackoffJitterFrac is the uniform fuzz fraction applied to the
	// computed backoff duration (0.05 == ±5%).
	BackoffJitterFrac float64
	// ClockDriftSlack is the tolerated backwards wall-clock drift checked
	// by GetUpdateDuration. GetUpdateDuration clamps every negative
	// duration to zero, within the slack or beyond it.
	ClockDriftSlack time.Duration
}

// DefaultConfig mirrors the constants named in spec.md: a small
// per-URL failure threshold, a 16-day backoff cap, ±5% jitter, and a few
// minutes of tolerated clock drift.
func DefaultConfig() Config {
	return Config{
		MaxFailuresPerURL: 10,
		BackoffCapDays:    16,
		BackoffJitterFrac: 0.05,
		ClockDriftSlack:   5 * time.Minute,
	}
}
