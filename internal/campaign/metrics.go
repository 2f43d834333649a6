package campaign

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK         = "ok"
	outcomeAffected   = "affected"
	outcomeUnaffected = "unaffected"
	outcomeError      = "error"
)

var (
	// trialsTotal counts finished trials by faulted component, error kind and outcome
	trialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snnfault_trials_total",
		Help: "Total fault-injection trials by component, error kind and outcome",
	}, []string{"component", "error_kind", "outcome"})

	trialDegradation = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snnfault_trial_degradation_percent",
		Help:    "Accuracy degradation of a trial against the fault-free baseline",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 75, 100},
	}, []string{"component"})

	// trialDuration tracks build plus process latency of one trial
	trialDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snnfault_trial_duration_seconds",
		Help:    "Trial duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	campaignsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snnfault_campaigns_total",
		Help: "Total campaigns by result",
	}, []string{"result"})
)

func trialOutcome(degradation float64) string {
	if degradation > 0 {
		return outcomeAffected
	}
	return outcomeUnaffected
}
