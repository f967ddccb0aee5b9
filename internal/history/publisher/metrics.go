package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts Kafka fan-out results.
type Metrics struct {
	Published      prometheus.Counter
	PublishFailure prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "procverify_history_published_total",
			Help: "History records acknowledged by Kafka",
		}),
		PublishFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "procverify_history_publish_failures_total",
			Help: "History records that could not be published to Kafka",
		}),
	}
}

func (m *Metrics) IncPublished() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailure.Inc()
	}
}
