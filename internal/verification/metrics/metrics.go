package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Decision outcomes by outcome and cache source
	DecisionOutcome *prometheus.CounterVec

	// Full Verify latency, cache hits included
	VerifyLatency prometheus.Histogram

	// Cache lookups by result: hit, miss, error
	CacheLookups *prometheus.CounterVec

	// Enrichment calls by result: ok, error, timeout
	Enrichment *prometheus.CounterVec

	BatchSize prometheus.Histogram

	HistoryFailures prometheus.Counter
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "procverify_decisions_total",
			Help: "Total decisions by outcome and whether they were served from cache",
		}, []string{"outcome", "cached"}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "procverify_verify_duration_seconds",
			Help:    "Duration of a single process verification",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 2.5},
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "procverify_cache_lookups_total",
			Help: "Decision cache lookups by result",
		}, []string{"result"}),

		Enrichment: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "procverify_enrichment_total",
			Help: "Rationale enrichment calls by result",
		}, []string{"result"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "procverify_batch_size",
			Help:    "Number of processes per batch verification",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 40, 50},
		}),

		HistoryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "procverify_history_append_failures_total",
			Help: "History appends that failed and were skipped",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string, cached bool) {
	if m != nil {
		label := "false"
		if cached {
			label = "true"
		}
		m.DecisionOutcome.WithLabelValues(outcome, label).Inc()
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementEnrichment(result string) {
	if m != nil {
		m.Enrichment.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

func (m *Metrics) IncrementHistoryFailure() {
	if m != nil {
		m.HistoryFailures.Inc()
	}
}
