package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records eventcore metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusRecorder or
// NewStatsdRecorder for those backends, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDelivery records one subscriber notification with its duration and error status.
	RecordDelivery(ctx context.Context, eventType string, duration time.Duration, err error)

	// RecordEmit records an emission through an adapter.
	RecordEmit(ctx context.Context, eventType, adapter string, duration time.Duration, err error)

	// RecordDropped records an event the async adapter refused to queue.
	RecordDropped(ctx context.Context, eventType, reason string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	deliveryErrors  metric.Int64Counter
	emits           metric.Int64Counter
	emitLatency     metric.Float64Histogram
	emitErrors      metric.Int64Counter
	dropped         metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventcore")

	deliveries, err := meter.Int64Counter("eventcore.delivery.count",
		metric.WithDescription("Number of subscriber notifications"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("eventcore.delivery.latency_ms",
		metric.WithDescription("Subscriber notification latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deliveryErrors, err := meter.Int64Counter("eventcore.delivery.errors",
		metric.WithDescription("Number of failed subscriber notifications"),
	)
	if err != nil {
		return nil, err
	}

	emits, err := meter.Int64Counter("eventcore.emit.count",
		metric.WithDescription("Number of emitted events"),
	)
	if err != nil {
		return nil, err
	}

	emitLatency, err := meter.Float64Histogram("eventcore.emit.latency_ms",
		metric.WithDescription("Emit latency in milliseconds, including synchronous delivery"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	emitErrors, err := meter.Int64Counter("eventcore.emit.errors",
		metric.WithDescription("Number of emits that returned an error"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("eventcore.async.dropped",
		metric.WithDescription("Number of events rejected by the async adapter"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		deliveryErrors:  deliveryErrors,
		emits:           emits,
		emitLatency:     emitLatency,
		emitErrors:      emitErrors,
		dropped:         dropped,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDelivery records a subscriber notification.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))

	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.deliveryErrors.Add(ctx, 1, attrs)
	}
}

// RecordEmit records an emission.
func (m *otelMetrics) RecordEmit(ctx context.Context, eventType, adapter string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("adapter", adapter),
	)

	m.emits.Add(ctx, 1, attrs)
	m.emitLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.emitErrors.Add(ctx, 1, attrs)
	}
}

// RecordDropped records a rejected async event.
func (m *otelMetrics) RecordDropped(ctx context.Context, eventType, reason string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
