package eventcore

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// Notifier fans one event out to every subscription of a manager.
// It holds only its collaborators and is safe for concurrent use.
type Notifier struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// NewNotifier creates a notifier. Only logging, metrics and tracing
// options apply.
func NewNotifier(opts ...Option) *Notifier {
	o := buildOptions(opts)
	return newNotifier(o)
}

func newNotifier(o options) *Notifier {
	return &Notifier{
		logger:  o.logger,
		metrics: o.metrics,
		spans:   o.spans,
	}
}

// Notify delivers evt to the subscribers of m.
//
// Order: before-emit hooks, subscribers in registration order, after-emit
// hooks, then every on-error hook for each captured failure in capture
// order. A failing or panicking subscriber never stops the fan-out. Hook
// errors are returned as is, at once. Subscriber failures are returned as
// a *FailedSubscribersError once every hook has run.
func (n *Notifier) Notify(ctx context.Context, m *Manager, evt *Event) error {
	snap := m.snapshot()

	for _, h := range snap.before {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}

	var failures []error
	for _, sub := range snap.subs {
		if err := n.deliver(ctx, sub, evt); err != nil {
			failures = append(failures, err)
		}
	}

	for _, h := range snap.after {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}

	for _, failure := range failures {
		for _, h := range snap.onError {
			if err := h(ctx, evt, failure); err != nil {
				return err
			}
		}
	}

	if len(failures) > 0 {
		return &FailedSubscribersError{Event: evt, Errors: failures}
	}
	return nil
}

// deliver notifies one subscriber, turning a panic into a *PanicError.
func (n *Notifier) deliver(ctx context.Context, sub *Subscription, evt *Event) (err error) {
	desc := sub.Describe()
	ctx, span := n.spans.StartDeliverySpan(ctx, evt.Type(), desc)
	done := observability.TimedOperation()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Subscriber: desc,
				Value:      r,
				Stack:      string(debug.Stack()),
			}
		}
		observability.LogDelivery(n.logger, evt.Type(), evt.ID(), desc, err)
		n.metrics.RecordDelivery(ctx, evt.Type(), done(), err)
		n.spans.EndSpanWithError(span, err)
	}()

	return sub.Observer.Notify(ctx, evt)
}
