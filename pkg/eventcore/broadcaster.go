package eventcore

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// Broadcaster is the emit entry point: it resolves an event's manager and
// adapter and hands the event over.
type Broadcaster struct {
	managers *ManagerRegistry
	adapters *AdapterRegistry
	notifier *Notifier

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// NewBroadcaster wires the registries and notifier. Logging, metrics and
// tracing options apply.
func NewBroadcaster(managers *ManagerRegistry, adapters *AdapterRegistry, notifier *Notifier, opts ...Option) *Broadcaster {
	o := buildOptions(opts)
	return newBroadcaster(managers, adapters, notifier, o)
}

func newBroadcaster(managers *ManagerRegistry, adapters *AdapterRegistry, notifier *Notifier, o options) *Broadcaster {
	return &Broadcaster{
		managers: managers,
		adapters: adapters,
		notifier: notifier,
		logger:   o.logger,
		metrics:  o.metrics,
		spans:    o.spans,
	}
}

// Emit delivers evt through the adapter of its type.
//
// Fails with *UnmanagedTypeError or *UnknownAdapterError before any adapter
// or subscriber runs. Otherwise returns what the adapter returns: the sync
// adapter returns subscriber failures, the async adapter only queueing errors.
func (b *Broadcaster) Emit(ctx context.Context, evt *Event) error {
	m, err := b.managers.LookupEvent(evt)
	if err != nil {
		return err
	}
	adapter, err := b.adapters.Resolve(m.AdapterName())
	if err != nil {
		return err
	}

	ctx, span := b.spans.StartEmitSpan(ctx, evt.Type(), evt.ID(), m.AdapterName())
	done := observability.TimedOperation()
	observability.LogEmit(b.logger, evt.Type(), evt.ID(), m.AdapterName())

	err = adapter.Dispatch(ctx, b.notifier, m, evt)

	b.metrics.RecordEmit(ctx, evt.Type(), m.AdapterName(), done(), err)
	b.spans.EndSpanWithError(span, err)
	return err
}

// RawEmit validates the raw attributes through the manager of typ, then
// emits the resulting event. The event is returned even when delivery fails.
func (b *Broadcaster) RawEmit(ctx context.Context, typ string, payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	evt, err := b.managers.NewEvent(typ, payload, metadata, opts...)
	if err != nil {
		return nil, err
	}
	return evt, b.Emit(ctx, evt)
}

// RegisterAdapter passes through to AdapterRegistry.Register.
func (b *Broadcaster) RegisterAdapter(name string, a Adapter) error {
	return b.adapters.Register(name, a)
}

// ResolveAdapter passes through to AdapterRegistry.Resolve.
func (b *Broadcaster) ResolveAdapter(name string) (Adapter, error) {
	return b.adapters.Resolve(name)
}

// Close stops the adapters.
func (b *Broadcaster) Close(ctx context.Context) error {
	return b.adapters.Close(ctx)
}
