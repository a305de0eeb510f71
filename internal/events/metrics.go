package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// publisherMetrics holds Prometheus metrics for event delivery.
type publisherMetrics struct {
	deliveries      *prometheus.CounterVec // status: delivered, failed
	attempts        prometheus.Counter
	evictions       prometheus.Counter
	publishDuration prometheus.Histogram
}

// newPublisherMetrics creates and registers delivery metrics. A nil
// registerer disables metrics.
func newPublisherMetrics(reg prometheus.Registerer) (*publisherMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &publisherMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redfishd",
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Event deliveries by final outcome",
		}, []string{"status"}),

		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redfishd",
			Subsystem: "events",
			Name:      "delivery_attempts_total",
			Help:      "Individual webhook POST attempts",
		}),

		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redfishd",
			Subsystem: "events",
			Name:      "evictions_total",
			Help:      "Subscribers removed after exhausting delivery retries",
		}),

		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "redfishd",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Time from publish until every subscriber was attempted",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}),
	}

	for _, c := range []prometheus.Collector{m.deliveries, m.attempts, m.evictions, m.publishDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *publisherMetrics) recordAttempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *publisherMetrics) recordDelivery(ok bool) {
	if m == nil {
		return
	}
	status := "delivered"
	if !ok {
		status = "failed"
	}
	m.deliveries.WithLabelValues(status).Inc()
}

func (m *publisherMetrics) recordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *publisherMetrics) observePublish(start time.Time) {
	if m == nil {
		return
	}
	m.publishDuration.Observe(time.Since(start).Seconds())
}
