package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
type PrometheusMetrics struct {
	deliveries      *prometheus.CounterVec
	deliveryErrors  *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	emits           *prometheus.CounterVec
	emitErrors      *prometheus.CounterVec
	emitLatency     *prometheus.HistogramVec
	dropped         *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusRecorder creates the collectors under namespace and registers
// them with reg. namespace defaults to "eventcore".
//
//	recorder, err := observability.NewPrometheusRecorder(prometheus.DefaultRegisterer, "")
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "eventcore"
	}

	m := &PrometheusMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Number of subscriber notifications.",
		}, []string{"event_type"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Number of failed subscriber notifications.",
		}, []string{"event_type"}),
		deliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Subscriber notification latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		emits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emits_total",
			Help:      "Number of emitted events.",
		}, []string{"event_type", "adapter"}),
		emitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Number of emits that returned an error.",
		}, []string{"event_type", "adapter"}),
		emitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emit_duration_seconds",
			Help:      "Emit latency, including synchronous delivery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type", "adapter"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_dropped_total",
			Help:      "Number of events rejected by the async adapter.",
		}, []string{"event_type", "reason"}),
	}

	for _, c := range []prometheus.Collector{
		m.deliveries, m.deliveryErrors, m.deliveryLatency,
		m.emits, m.emitErrors, m.emitLatency, m.dropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register prometheus collector: %w", err)
		}
	}
	return m, nil
}

// RecordDelivery records a subscriber notification.
func (m *PrometheusMetrics) RecordDelivery(_ context.Context, eventType string, duration time.Duration, err error) {
	m.deliveries.WithLabelValues(eventType).Inc()
	m.deliveryLatency.WithLabelValues(eventType).Observe(duration.Seconds())
	if err != nil {
		m.deliveryErrors.WithLabelValues(eventType).Inc()
	}
}

// RecordEmit records an emission.
func (m *PrometheusMetrics) RecordEmit(_ context.Context, eventType, adapter string, duration time.Duration, err error) {
	m.emits.WithLabelValues(eventType, adapter).Inc()
	m.emitLatency.WithLabelValues(eventType, adapter).Observe(duration.Seconds())
	if err != nil {
		m.emitErrors.WithLabelValues(eventType, adapter).Inc()
	}
}

// RecordDropped records a rejected async event.
func (m *PrometheusMetrics) RecordDropped(_ context.Context, eventType, reason string) {
	m.dropped.WithLabelValues(eventType, reason).Inc()
}
