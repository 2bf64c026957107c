package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordDelivery does nothing.
func (NoopMetrics) RecordDelivery(_ context.Context, _ string, _ time.Duration, _ error) {}

// RecordEmit does nothing.
func (NoopMetrics) RecordEmit(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordDropped does nothing.
func (NoopMetrics) RecordDropped(_ context.Context, _, _ string) {}

// MultiMetrics fans every record out to each recorder in order.
type MultiMetrics []MetricsRecorder

// Compile-time interface check.
var _ MetricsRecorder = MultiMetrics(nil)

// RecordDelivery forwards to every recorder.
func (m MultiMetrics) RecordDelivery(ctx context.Context, eventType string, duration time.Duration, err error) {
	for _, r := range m {
		r.RecordDelivery(ctx, eventType, duration, err)
	}
}

// RecordEmit forwards to every recorder.
func (m MultiMetrics) RecordEmit(ctx context.Context, eventType, adapter string, duration time.Duration, err error) {
	for _, r := range m {
		r.RecordEmit(ctx, eventType, adapter, duration, err)
	}
}

// RecordDropped forwards to every recorder.
func (m MultiMetrics) RecordDropped(ctx context.Context, eventType, reason string) {
	for _, r := range m {
		r.RecordDropped(ctx, eventType, reason)
	}
}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartEmitSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartEmitSpan(ctx context.Context, _, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartDeliverySpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDeliverySpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}
