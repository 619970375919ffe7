// Package metrics holds the Prometheus collectors for check-in, token and reporting activity.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance core.
type Metrics struct {
	// Check-in outcomes by status: closed, needs_registration, already_present, confirmed
	CheckInOutcome *prometheus.CounterVec

	// Lost attendance insert races converted to already_present
	CheckInConflicts prometheus.Counter

	TokensIssued prometheus.Counter

	// Rendered reports by format and kind
	ReportsRendered *prometheus.CounterVec

	AnalyticsLatency prometheus.Histogram
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in main and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckInOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presenca_checkin_outcomes_total",
			Help: "Check-in and registration outcomes by status",
		}, []string{"status"}),

		CheckInConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "presenca_checkin_conflicts_total",
			Help: "Concurrent duplicate attendance inserts resolved as already present",
		}),

		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "presenca_tokens_issued_total",
			Help: "Check-in tokens issued",
		}),

		ReportsRendered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presenca_reports_rendered_total",
			Help: "Rendered report documents by format and kind",
		}, []string{"format", "kind"}),

		AnalyticsLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "presenca_analytics_duration_seconds",
			Help:    "Duration of analytics computation including store reads",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOutcome records a check-in outcome.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.CheckInOutcome.WithLabelValues(status).Inc()
	}
}

// IncrementConflict records a lost attendance insert race.
func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.CheckInConflicts.Inc()
	}
}

// IncrementTokensIssued records a token issuance.
func (m *Metrics) IncrementTokensIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

// IncrementReport records a rendered report.
func (m *Metrics) IncrementReport(format, kind string) {
	if m != nil {
		m.ReportsRendered.WithLabelValues(format, kind).Inc()
	}
}

// ObserveAnalytics records how long an analytics computation took.
func (m *Metrics) ObserveAnalytics(d time.Duration) {
	if m != nil {
		m.AnalyticsLatency.Observe(d.Seconds())
	}
}
