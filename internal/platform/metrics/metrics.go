// Package metrics registers the daemon's Prometheus instruments. Label values
// are small closed sets; nothing user-derived is ever used as a label.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the daemon.
type Metrics struct {
	ResolutionOutcomes *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	LLMCalls           *prometheus.CounterVec
	VaultOps           *prometheus.CounterVec
	UnlockAttempts     *prometheus.CounterVec
	TurnDuration       prometheus.Histogram
	TurnOverruns       prometheus.Counter
	IdleLocks          prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ResolutionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_resolution_outcomes_total",
			Help: "Resolution outcomes by tier and kind",
		}, []string{"tier", "kind"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "blackbox_resolve_duration_seconds",
			Help:    "Wall time of one resolution attempt",
			Buckets: []float64{.01, .025, .05, .1, .2, .5, 1, 2},
		}),
		LLMCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_llm_calls_total",
			Help: "Disambiguator invocations by result (chosen, no_match, error, timeout)",
		}, []string{"result"}),
		VaultOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_vault_ops_total",
			Help: "Vault operations by op and result",
		}, []string{"op", "result"}),
		UnlockAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blackbox_unlock_attempts_total",
			Help: "Vault unlock attempts by result; passphrases are never recorded",
		}, []string{"result"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "blackbox_turn_duration_seconds",
			Help:    "Transcript-ready to response-ready wall time",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8},
		}),
		TurnOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "blackbox_turn_deadline_overruns_total",
			Help: "Voice turns that exceeded the soft end-to-end deadline",
		}),
		IdleLocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "blackbox_idle_locks_total",
			Help: "Automatic session locks triggered by the idle deadline",
		}),
	}
}

// ObserveResolve records one resolution attempt.
func (m *Metrics) ObserveResolve(tier, kind string, d time.Duration) {
	m.ResolutionOutcomes.WithLabelValues(tier, kind).Inc()
	m.ResolveDuration.Observe(d.Seconds())
}

// ObserveTurn records one completed voice turn.
func (m *Metrics) ObserveTurn(d time.Duration, overrun bool) {
	m.TurnDuration.Observe(d.Seconds())
	if overrun {
		m.TurnOverruns.Inc()
	}
}
