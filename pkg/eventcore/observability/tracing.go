package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the eventcore tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("eventcore")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEmitSpan starts a span covering one emit through an adapter.
	// Returns the context with span and the span itself.
	StartEmitSpan(ctx context.Context, eventType, eventID, adapter string) (context.Context, trace.Span)

	// StartDeliverySpan starts a span for one subscriber notification.
	// The delivery span should be a child of the emit span.
	StartDeliverySpan(ctx context.Context, eventType, subscriber string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartEmitSpan starts a span covering one emit.
func (m *otelSpanManager) StartEmitSpan(ctx context.Context, eventType, eventID, adapter string) (context.Context, trace.Span) {
	return StartEmitSpan(ctx, eventType, eventID, adapter)
}

// StartDeliverySpan starts a span for one subscriber notification.
func (m *otelSpanManager) StartDeliverySpan(ctx context.Context, eventType, subscriber string) (context.Context, trace.Span) {
	return StartDeliverySpan(ctx, eventType, subscriber)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartEmitSpan starts a span covering one emit.
// Uses the global OTel tracer.
func StartEmitSpan(ctx context.Context, eventType, eventID, adapter string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventcore.emit",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("event.id", eventID),
			attribute.String("event.adapter", adapter),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartDeliverySpan starts a span for one subscriber notification.
// Uses the global OTel tracer.
func StartDeliverySpan(ctx context.Context, eventType, subscriber string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventcore.deliver",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("subscriber", subscriber),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the span in ctx, whichever SpanManager
// started it. It does nothing when that span is not recording.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
