package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ScansStarted   prometheus.Counter
	ScansCompleted *prometheus.CounterVec
	ScansCancelled prometheus.Counter
	ScanDuration   prometheus.Histogram

	VerificationRuns *prometheus.CounterVec
	StepDuration     prometheus.Histogram

	CertificatesIssued prometheus.Counter

	RequestLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics against a specific registerer; tests pass a fresh
// registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScansStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthcert_scans_started_total",
			Help: "Total number of scan jobs started",
		}),
		ScansCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcert_scans_completed_total",
			Help: "Total number of scan jobs that produced a result",
		}, []string{"document_type", "enhanced"}),
		ScansCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthcert_scans_cancelled_total",
			Help: "Total number of scan jobs cancelled before completion",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthcert_scan_duration_seconds",
			Help:    "Wall-clock duration of completed scan jobs",
			Buckets: prometheus.DefBuckets,
		}),
		VerificationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcert_verification_runs_total",
			Help: "Total verification runs by tier and outcome",
		}, []string{"tier", "outcome"}),
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthcert_verification_step_duration_seconds",
			Help:    "Duration of individual verification steps",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthcert_certificates_issued_total",
			Help: "Total certificates issued",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthcert_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveScan records a completed scan.
func (m *Metrics) ObserveScan(documentType string, enhanced bool, d time.Duration) {
	if m == nil {
		return
	}
	label := "false"
	if enhanced {
		label = "true"
	}
	m.ScansCompleted.WithLabelValues(documentType, label).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// ObserveVerification records a terminated verification run.
func (m *Metrics) ObserveVerification(tier, outcome string) {
	if m == nil {
		return
	}
	m.VerificationRuns.WithLabelValues(tier, outcome).Inc()
}
