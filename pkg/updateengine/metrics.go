package updateengine

import "time"

// MetricsSink is the narrow interface the core emits summary values
// through. It never imports a metrics backend directly — see
// pkg/metrics/updateengine for the Prometheus-backed implementation.
type MetricsSink interface {
	// SendEnum reports a value drawn from a small closed set (e.g. a
	// payload-type or error-category enum), 0..max inclusive.
	SendEnum(name string, value, max int)
	// SendCount reports a bounded counter-like sample (bytes, attempts,
	// switches) bucketed between min and max.
	SendCount(name string, value, min, max int64, buckets int)
	// SendTime reports a duration sample bucketed between min and max.
	SendTime(name string, value time.Duration, min, max time.Duration, buckets int)
}

// noopMetricsSink discards everything. Used when no sink is configured so
// the core never has to nil-check before every emission.
type noopMetricsSink struct{}

func (noopMetricsSink) SendEnum(string, int, int)                                    {}
func (noopMetricsSink) SendCount(string, int64, int64, int64, int)                   {}
func (noopMetricsSink) SendTime(string, time.Duration, time.Duration, time.Duration, int) {}

// Metric names, stable across versions the way the persisted keys are —
// dashboards and alerts key off these strings.
const (
	metricAttemptNumber       = "UpdateEngine.Attempt.Number"
	metricAttemptDuration     = "UpdateEngine.Attempt.DurationMinutes"
	metricAttemptDurationUp   = "UpdateEngine.Attempt.DurationUptimeMinutes"
	metricAttemptPayloadBytes = "UpdateEngine.Attempt.PayloadBytesDownloaded"
	metricAttemptPayloadType  = "UpdateEngine.Attempt.PayloadType"
	metricAttemptPayloadSize  = "UpdateEngine.Attempt.PayloadSizeMiB"
	metricAttemptResult       = "UpdateEngine.Attempt.Result"

	metricSucceedURLSwitches  = "UpdateEngine.SucceedTimer.URLSwitches"
	metricSucceedAttempts     = "UpdateEngine.SucceedTimer.Attempts"
	metricSucceedAbandoned    = "UpdateEngine.SucceedTimer.UpdatesAbandonedCount"
	metricBootedIntoUpdate    = "UpdateEngine.TimeToRebootMinutes"
	metricFailedBootAttempts  = "UpdateEngine.FailedBootAttempts"
)
