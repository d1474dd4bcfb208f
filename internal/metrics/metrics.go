package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels sessions that completed cleanly.
	OutcomeSuccess = "success"
	// OutcomeError labels sessions that failed (I/O or baseline issues).
	OutcomeError = "error"
)

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "device_sentinel",
			Name:      "sessions_total",
			Help:      "Total sessions handled, partitioned by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	sessionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "device_sentinel",
			Name:      "session_seconds",
			Help:      "Session wall time in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)

	linesScannedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "device_sentinel",
			Name:      "lines_scanned_total",
			Help:      "Total device log lines read across all sessions.",
		},
	)

	samplesExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "device_sentinel",
			Name:      "samples_extracted_total",
			Help:      "Metric samples extracted, partitioned by metric kind.",
		},
		[]string{"kind"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "device_sentinel",
			Name:      "alerts_total",
			Help:      "EWMA anomaly alerts emitted, partitioned by metric.",
		},
		[]string{"metric"},
	)

	anomaliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "device_sentinel",
			Name:      "comparison_anomalies_total",
			Help:      "Anomalous metrics found by baseline comparisons.",
		},
	)
)

// Register attaches device-sentinel collectors to the supplied
// Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		sessionsTotal,
		sessionDurationSeconds,
		linesScannedTotal,
		samplesExtractedTotal,
		alertsTotal,
		anomaliesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSession records one session's duration and outcome.
func ObserveSession(mode string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	sessionsTotal.WithLabelValues(mode, label).Inc()
	if duration < 0 {
		duration = 0
	}
	sessionDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddLinesScanned accumulates log lines read during a session.
func AddLinesScanned(n int) {
	if n > 0 {
		linesScannedTotal.Add(float64(n))
	}
}

// AddSamples accumulates extracted samples for a metric kind.
func AddSamples(kind string, n int) {
	if n > 0 {
		samplesExtractedTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// IncAlert counts one emitted alert for a metric.
func IncAlert(metric string) {
	alertsTotal.WithLabelValues(metric).Inc()
}

// AddComparisonAnomalies accumulates anomalous metrics from a report.
func AddComparisonAnomalies(n int) {
	if n > 0 {
		anomaliesTotal.Add(float64(n))
	}
}
