package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	connectorRunsTotal *prometheus.CounterVec

	connectorRunDuration prometheus.Histogram

	findingsIngestedTotal *prometheus.CounterVec

	findingsDedupedTotal prometheus.Counter

	rulesMatchedTotal prometheus.Counter

	dispatchAttemptsTotal *prometheus.CounterVec
)

// InitMetrics registers the engine's Prometheus metrics. Call once at
// startup; repeated calls are no-ops.
func InitMetrics() {
	metricsOnce.Do(func() {
		connectorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkguard_connector_runs_total",
				Help: "Connector runs by source type and outcome",
			},
			[]string{"source", "status"},
		)

		connectorRunDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "darkguard_connector_run_duration_seconds",
				Help:    "Duration of connector runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		)

		findingsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkguard_findings_ingested_total",
				Help: "Findings accepted by the deduplicating store, by source",
			},
			[]string{"source"},
		)

		findingsDedupedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "darkguard_findings_deduped_total",
				Help: "Candidate findings dropped as re-observations",
			},
		)

		rulesMatchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "darkguard_rules_matched_total",
				Help: "Alert rule matches produced by the matcher",
			},
		)

		dispatchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkguard_dispatch_attempts_total",
				Help: "Terminal dispatch attempts by channel and status",
			},
			[]string{"channel", "status"},
		)
	})
}

func recordRun(source, status string, elapsed time.Duration) {
	if connectorRunsTotal != nil {
		connectorRunsTotal.WithLabelValues(source, status).Inc()
	}
	if connectorRunDuration != nil {
		connectorRunDuration.Observe(elapsed.Seconds())
	}
}

func recordIngested(source string, accepted, deduped int) {
	if findingsIngestedTotal != nil {
		findingsIngestedTotal.WithLabelValues(source).Add(float64(accepted))
	}
	if findingsDedupedTotal != nil {
		findingsDedupedTotal.Add(float64(deduped))
	}
}

func recordMatch() {
	if rulesMatchedTotal != nil {
		rulesMatchedTotal.Inc()
	}
}

func recordDispatch(channel, status string) {
	if dispatchAttemptsTotal != nil {
		dispatchAttemptsTotal.WithLabelValues(channel, status).Inc()
	}
}
