// Package updateengine provides a Prometheus-backed implementation of
// pkg/updateengine.MetricsSink. Pass a nil registry to get working
// metrics that are simply never registered (handy for tests).
package updateengine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittofs/pkg/updateengine"
)

// Metrics is the Prometheus implementation of updateengine.MetricsSink.
// Enum, count, and time samples each collapse onto one metric family per
// kind (a gauge vec for enums, histogram vecs for counts and times),
// labeled "name", rather than one family per UpdateEngine.* metric string.
type Metrics struct {
	enumGauge  *prometheus.GaugeVec
	countHist  *prometheus.HistogramVec
	timeHist   *prometheus.HistogramVec
	registered bool
}

// NewMetrics creates update-engine metrics. If registry is nil the
// metrics are created but not registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		enumGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dittofs",
				Subsystem: "updateengine",
				Name:      "enum_value",
				Help:      "Last reported value of an update-engine enum metric.",
			},
			[]string{"name"},
		),
		countHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dittofs",
				Subsystem: "updateengine",
				Name:      "count",
				Help:      "Distribution of update-engine counter-like samples (bytes, attempts, switches).",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"name"},
		),
		timeHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dittofs",
				Subsystem: "updateengine",
				Name:      "duration_seconds",
				Help:      "Distribution of update-engine duration samples.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"name"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.enumGauge, m.countHist, m.timeHist)
		m.registered = true
	}

	return m
}

func (m *Metrics) SendEnum(name string, value, max int) {
	m.enumGauge.WithLabelValues(name).Set(float64(value))
}

func (m *Metrics) SendCount(name string, value, min, max int64, buckets int) {
	m.countHist.WithLabelValues(name).Observe(float64(value))
}

func (m *Metrics) SendTime(name string, value time.Duration, min, max time.Duration, buckets int) {
	m.timeHist.WithLabelValues(name).Observe(value.Seconds())
}

var _ updateengine.MetricsSink = (*Metrics)(nil)
