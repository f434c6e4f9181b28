// Package metrics exposes prometheus instrumentation for deployment runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruteri/trex-suite-provisioning/common"
)

// Metrics tracks ledger activity and orchestration progress. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Transactions submitted by kind ("deploy", "call") and outcome
	// ("confirmed", "reverted", "timeout", "error").
	Transactions *prometheus.CounterVec

	// Time from submission to the first confirmation.
	ConfirmLatency *prometheus.HistogramVec

	// Completed orchestration steps by stage.
	Steps *prometheus.CounterVec

	// Claims signed and submitted, by outcome.
	Claims *prometheus.CounterVec

	// Wall time of whole runs by mode ("full", "factory") and outcome.
	RunDuration *prometheus.HistogramVec
}

// New registers the metrics with reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	ns := common.PackageName

	return &Metrics{
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transactions_total",
			Help:      "Transactions submitted to the ledger by kind and outcome",
		}, []string{"kind", "outcome"}),

		ConfirmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "confirmation_duration_seconds",
			Help:      "Time between submission and first confirmation",
			Buckets:   []float64{0.05, 0.25, 1, 2, 5, 12, 30, 60, 120},
		}, []string{"kind"}),

		Steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deployment_steps_total",
			Help:      "Completed orchestration steps by stage",
		}, []string{"stage"}),

		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "claims_total",
			Help:      "Claims issued by outcome",
		}, []string{"outcome"}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "run_duration_seconds",
			Help:      "Duration of deployment runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"mode", "outcome"}),
	}
}

// ObserveTransaction records one ledger transaction.
func (m *Metrics) ObserveTransaction(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(kind, outcome).Inc()
	if outcome == "confirmed" || outcome == "reverted" {
		m.ConfirmLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncStep records a completed orchestration step.
func (m *Metrics) IncStep(stage string) {
	if m != nil {
		m.Steps.WithLabelValues(stage).Inc()
	}
}

// IncClaim records a claim issuance outcome.
func (m *Metrics) IncClaim(outcome string) {
	if m != nil {
		m.Claims.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(mode string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RunDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
}
