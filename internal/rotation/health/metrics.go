// Package health exposes Prometheus metrics for the rotation engine.
package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rotationStartedTotal   *prometheus.CounterVec
	rotationCompletedTotal *prometheus.CounterVec
	rotationDuration       *prometheus.HistogramVec
	rotationRetryTotal     *prometheus.CounterVec
	overdueDetectedTotal   prometheus.Counter
	schedulesArmed         prometheus.Gauge

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics provides methods to record rotation engine metrics. Recording is
// a no-op until InitMetrics has been called, so library consumers who do
// not want Prometheus pay nothing.
type Metrics struct{}

// NewMetrics creates a Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all Prometheus metrics. Call once at startup when
// metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		rotationStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_rotation_started_total",
				Help: "Total number of rotation executions started",
			},
			[]string{"strategy"},
		)

		rotationCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_rotation_completed_total",
				Help: "Total number of rotation executions completed",
			},
			[]string{"strategy", "status"},
		)

		rotationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rotor_rotation_duration_seconds",
				Help:    "Duration of rotation executions in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
			[]string{"strategy"},
		)

		rotationRetryTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotor_rotation_retry_total",
				Help: "Total number of retry timers armed after failures",
			},
			[]string{"strategy"},
		)

		overdueDetectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rotor_overdue_detected_total",
				Help: "Total number of overdue schedules caught by the sweeper",
			},
		)

		schedulesArmed = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rotor_schedules_armed",
				Help: "Number of schedules with an armed in-memory timer",
			},
		)

		metricsRegistered = true
	})
}

// RecordStarted records a rotation execution start.
func (m *Metrics) RecordStarted(strategy string) {
	if !metricsRegistered || rotationStartedTotal == nil {
		return
	}
	rotationStartedTotal.WithLabelValues(strategy).Inc()
}

// RecordCompleted records a rotation execution outcome.
func (m *Metrics) RecordCompleted(strategy, status string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	if rotationCompletedTotal != nil {
		rotationCompletedTotal.WithLabelValues(strategy, status).Inc()
	}
	if rotationDuration != nil {
		rotationDuration.WithLabelValues(strategy).Observe(durationSeconds)
	}
}

// RecordRetry records that a retry timer was armed.
func (m *Metrics) RecordRetry(strategy string) {
	if !metricsRegistered || rotationRetryTotal == nil {
		return
	}
	rotationRetryTotal.WithLabelValues(strategy).Inc()
}

// RecordOverdue records an overdue schedule detection.
func (m *Metrics) RecordOverdue() {
	if !metricsRegistered || overdueDetectedTotal == nil {
		return
	}
	overdueDetectedTotal.Inc()
}

// SetArmed records the current number of armed timers.
func (m *Metrics) SetArmed(n int) {
	if !metricsRegistered || schedulesArmed == nil {
		return
	}
	schedulesArmed.Set(float64(n))
}

// IsMetricsRegistered reports whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
