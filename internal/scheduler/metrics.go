package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scheduler's Prometheus collectors. They are registered on
// an injected registerer so tests can use a private registry.
type Metrics struct {
	ClaimsTotal      prometheus.Counter
	ClaimErrorsTotal prometheus.Counter
	StepErrorsTotal  prometheus.Counter
	StepDurationSecs prometheus.Histogram
}

// NewMetrics creates and registers the scheduler collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClaimsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_claims_total",
			Help: "Queue items successfully claimed by workers.",
		}),
		ClaimErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_claim_errors_total",
			Help: "Claim attempts that failed because the queue store was unavailable.",
		}),
		StepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_step_errors_total",
			Help: "Step executions that returned a storage-level error.",
		}),
		StepDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_step_duration_seconds",
			Help:    "Wall time of step executions, including handler calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.ClaimsTotal, m.ClaimErrorsTotal, m.StepErrorsTotal, m.StepDurationSecs)
	return m
}
