package eventcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// countingAdapter counts dispatches and runs the notifier inline.
type countingAdapter struct {
	calls atomic.Int32
}

func (c *countingAdapter) Dispatch(ctx context.Context, n *Notifier, m *Manager, evt *Event) error {
	c.calls.Add(1)
	return n.Notify(ctx, m, evt)
}

func TestEmitUnmanagedTypeInvokesNothing(t *testing.T) {
	sys, _ := newTestSystem(t)
	counting := &countingAdapter{}
	require.NoError(t, sys.RegisterAdapter("counting", counting))

	def := MustDefinition("order_placed", WithAdapter("counting"))
	m := NewManager(def, Defaults{})
	tr := &trace{}
	m.Subscribe(tr.step("sub", nil))

	err := sys.Emit(context.Background(), NewEvent("order_placed", rawAttrs(nil), rawAttrs(nil)))

	var unmanaged *UnmanagedTypeError
	require.ErrorAs(t, err, &unmanaged)
	assert.Equal(t, "order_placed", unmanaged.Type)
	assert.Zero(t, counting.calls.Load())
	assert.Zero(t, tr.len())
}

func TestEmitUnknownAdapterInvokesNothing(t *testing.T) {
	sys, _ := newTestSystem(t)
	m := orderPlaced(t, sys, WithAdapter("kafka"))
	tr := &trace{}
	m.Subscribe(tr.step("sub", nil))

	_, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": 1}, nil)
	assert.ErrorIs(t, err, ErrUnknownAdapter)
	assert.Zero(t, tr.len())
}

func TestEmitThroughCustomAdapter(t *testing.T) {
	sys, h := newTestSystem(t)
	counting := &countingAdapter{}
	require.NoError(t, sys.RegisterAdapter("counting", counting))
	m := orderPlaced(t, sys, WithAdapter("counting"))
	tr := &trace{}
	m.Subscribe(tr.step("sub", nil))

	evt, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": "12"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, evt.Payload().Value("order_id"))
	assert.Equal(t, "", evt.Payload().Value("note"))
	assert.Equal(t, int32(1), counting.calls.Load())
	assert.Equal(t, []string{"sub"}, tr.get())

	emitted := h.messages("event emitted")
	require.Len(t, emitted, 1)
	assert.Equal(t, "counting", emitted[0].Attrs["adapter"])
}

func TestRawEmitValidationFailsBeforeDispatch(t *testing.T) {
	sys, _ := newTestSystem(t)
	m := orderPlaced(t, sys)
	tr := &trace{}
	m.Subscribe(tr.step("sub", nil))

	evt, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": "abc"}, nil)
	assert.Nil(t, evt)
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.Zero(t, tr.len())

	_, err = sys.RawEmit(context.Background(), "unknown", nil, nil)
	assert.ErrorIs(t, err, ErrUnmanaged)
}

func TestRawEmitReturnsEventOnDeliveryFailure(t *testing.T) {
	sys, _ := newTestSystem(t)
	m := orderPlaced(t, sys)
	errBad := errors.New("bad")
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return errBad }))

	evt, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": 1}, nil, WithEventID("evt-1"))
	require.NotNil(t, evt)
	assert.Equal(t, "evt-1", evt.ID())
	assert.ErrorIs(t, err, errBad)
}

// recordingMetrics captures emit and delivery calls.
type recordingMetrics struct {
	mu         sync.Mutex
	emits      []string
	deliveries []string
	dropped    []string
}

func (r *recordingMetrics) RecordDelivery(_ context.Context, eventType string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, eventType+":"+outcome(err))
}

func (r *recordingMetrics) RecordEmit(_ context.Context, eventType, adapter string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, eventType+"@"+adapter+":"+outcome(err))
}

func (r *recordingMetrics) RecordDropped(_ context.Context, eventType, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, eventType+":"+reason)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func TestEmitRecordsMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	sys, _ := newTestSystem(t, WithMetrics(rec))
	m := orderPlaced(t, sys)
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return nil }))
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return errors.New("bad") }))

	_, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": 1}, nil)
	require.Error(t, err)

	assert.Equal(t, []string{"order_placed@sync:error"}, rec.emits)
	assert.Equal(t, []string{"order_placed:ok", "order_placed:error"}, rec.deliveries)
}

// sdkSpans is a SpanManager backed by an SDK tracer provider.
type sdkSpans struct {
	tracer oteltrace.Tracer
}

func (s sdkSpans) StartEmitSpan(ctx context.Context, eventType, eventID, adapter string) (context.Context, oteltrace.Span) {
	return s.tracer.Start(ctx, "eventcore.emit", oteltrace.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("event.id", eventID),
		attribute.String("event.adapter", adapter),
	))
}

func (s sdkSpans) StartDeliverySpan(ctx context.Context, eventType, subscriber string) (context.Context, oteltrace.Span) {
	return s.tracer.Start(ctx, "eventcore.deliver", oteltrace.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("subscriber", subscriber),
	))
}

func (s sdkSpans) EndSpanWithError(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func TestEmitSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	sys, _ := newTestSystem(t, WithSpanManager(sdkSpans{tracer: tp.Tracer("test")}))
	m := orderPlaced(t, sys)
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return nil }))
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return errors.New("bad") }))

	_, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": 1}, nil)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	emit := spans[2]
	assert.Equal(t, "eventcore.emit", emit.Name)
	assert.Equal(t, codes.Error, emit.Status.Code)
	for _, child := range spans[:2] {
		assert.Equal(t, "eventcore.deliver", child.Name)
		assert.Equal(t, emit.SpanContext.SpanID(), child.Parent.SpanID())
	}
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestAsyncEmitSpanRecordsQueueing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	sys, _ := newTestSystem(t, WithSpanManager(sdkSpans{tracer: tp.Tracer("test")}))
	orderPlaced(t, sys, WithAdapter(AdapterAsync))

	_, err := sys.RawEmit(context.Background(), "order_placed", map[string]any{"order_id": 1}, nil)
	require.NoError(t, err)

	var emit *tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		if s.Name == "eventcore.emit" {
			emit = &s
		}
	}
	require.NotNil(t, emit)
	require.Len(t, emit.Events, 1)
	assert.Equal(t, "queued", emit.Events[0].Name)
	require.Len(t, emit.Events[0].Attributes, 1)
	assert.Equal(t, attribute.Key("queue.depth"), emit.Events[0].Attributes[0].Key)
}
