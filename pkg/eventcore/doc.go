// Package eventcore provides an in-process event bus: typed events, per-type
// managers holding subscriptions and lifecycle hooks, a notifier that fans
// each event out to every subscriber, and named delivery adapters.
//
// # Quick Start
//
// Define an event type, observe it and emit:
//
//	sys := eventcore.NewSystem()
//	defer sys.Close(ctx)
//
//	_, err := sys.Define("user_registered",
//	    eventcore.WithPayload(
//	        schema.Attr("user_id", schema.TypeInt),
//	        schema.Attr("comment", schema.TypeString, schema.Default("")),
//	    ),
//	)
//
//	_, err = sys.Observe("user_registered", mailer, "SendWelcome")
//	_, err = sys.RawEmit(ctx, "user_registered", map[string]any{"user_id": 42}, nil)
//
// # Delivery
//
// Every event type is bound to one adapter by name. Two adapters are built in:
//
//   - "sync" runs the notifier on the caller's goroutine and returns its error
//   - "async" queues the event on a worker pool and returns immediately
//
// Additional adapters are registered with AdapterRegistry.Register. Built-in
// names cannot be shadowed.
//
// # Notification Order
//
// For one event the notifier runs, strictly in this order: every before-emit
// hook, every subscription in registration order, every after-emit hook, then
// every on-error hook once per captured subscriber failure. A subscriber
// failure never stops the fan-out; all failures are returned together as a
// *FailedSubscribersError. Hook errors are returned immediately.
//
// # Registries
//
// ManagerRegistry maps event types to managers and AdapterRegistry maps names
// to adapters. Both are ordinary values with an explicit lifecycle; System
// wires them together and Default returns a lazily built process-wide System
// for the package-level helpers.
//
// # Error Handling
//
// Sentinel errors (ErrUnmanaged, ErrUnknownAdapter, ...) are matched with
// errors.Is. Typed errors (*UnmanagedTypeError, *FailedSubscribersError, ...)
// carry context and are extracted with errors.As.
package eventcore
