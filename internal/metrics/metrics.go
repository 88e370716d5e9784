// Package metrics exposes Prometheus collectors for jobs, cleanup, and event
// subscribers. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clipforge"

// Metrics groups the daemon's collectors.
type Metrics struct {
	jobsSubmitted    prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	jobsActive       prometheus.Gauge
	filesTransformed *prometheus.CounterVec
	cleanupDeletions *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
}

// New registers the collectors on reg. subscribers, when non-nil, backs the
// connected-client gauge.
func New(reg prometheus.Registerer, subscribers func() int) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Processing jobs accepted.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Processing jobs that reached a terminal state.",
		}, []string{"status"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Processing jobs currently running.",
		}),
		filesTransformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_transformed_total",
			Help:      "Per-file transform attempts by result.",
		}, []string{"result"}),
		cleanupDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deletions_total",
			Help:      "Cleanup deletions by operation and result.",
		}, []string{"operation", "result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cleanup_sweep_duration_seconds",
			Help:      "Duration of cleanup sweeps in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.jobsSubmitted, m.jobsFinished, m.jobsActive, m.filesTransformed, m.cleanupDeletions, m.sweepDuration)
	if subscribers != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_subscribers",
			Help:      "Connected event stream clients.",
		}, func() float64 { return float64(subscribers()) }))
	}
	return m
}

// JobSubmitted records an accepted job.
func (m *Metrics) JobSubmitted() {
	if m == nil || m.jobsSubmitted == nil {
		return
	}
	m.jobsSubmitted.Inc()
	m.jobsActive.Inc()
}

// JobFinished records a terminal job state.
func (m *Metrics) JobFinished(status string) {
	if m == nil || m.jobsFinished == nil {
		return
	}
	m.jobsFinished.WithLabelValues(normalizeLabel(status)).Inc()
	m.jobsActive.Dec()
}

// FileTransformed records one transform outcome: "completed", "error", or "skipped".
func (m *Metrics) FileTransformed(result string) {
	if m == nil || m.filesTransformed == nil {
		return
	}
	m.filesTransformed.WithLabelValues(normalizeLabel(result)).Inc()
}

// CleanupDeletion records one audited deletion.
func (m *Metrics) CleanupDeletion(operation string, success bool) {
	if m == nil || m.cleanupDeletions == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.cleanupDeletions.WithLabelValues(normalizeLabel(operation), result).Inc()
}

// ObserveSweep records a sweep's duration.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
