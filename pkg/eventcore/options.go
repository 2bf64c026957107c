package eventcore

import (
	"log/slog"

	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// Process-wide defaults used when neither a Definition nor the System
// options name an adapter or selector.
const (
	DefaultAdapter  = AdapterSync
	DefaultSelector = "Call"
)

// options holds configuration shared by Notifier, Broadcaster and System.
type options struct {
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	defaults Defaults
	async    []AsyncOption
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		defaults: Defaults{}.withFallbacks(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a System, Notifier or Broadcaster.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default().
//
// Every subscriber notification produces one "event processed" line:
//
//	sys := eventcore.NewSystem(eventcore.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpanManager sets the span manager. Default: observability.NoopSpanManager{}.
func WithSpanManager(s observability.SpanManager) Option {
	return func(o *options) {
		if s != nil {
			o.spans = s
		}
	}
}

// WithTracing enables OpenTelemetry spans using the global tracer provider.
func WithTracing() Option {
	return WithSpanManager(observability.NewSpanManager())
}

// WithDefaultAdapter sets the adapter used by definitions that name none.
// Default: "sync".
func WithDefaultAdapter(name string) Option {
	return func(o *options) {
		if name != "" {
			o.defaults.Adapter = name
		}
	}
}

// WithDefaultSelector sets the selector used by definitions that name none.
// Default: "Call".
func WithDefaultSelector(selector string) Option {
	return func(o *options) {
		if selector != "" {
			o.defaults.Selector = selector
		}
	}
}

// WithAsyncOptions configures the built-in async adapter.
func WithAsyncOptions(opts ...AsyncOption) Option {
	return func(o *options) {
		o.async = append(o.async, opts...)
	}
}

// WithSettings applies loaded settings: defaults and async tuning.
// Logging and metrics backends are built by the caller from the same
// settings and passed with WithLogger and WithMetrics.
func WithSettings(s config.Settings) Option {
	return func(o *options) {
		WithDefaultAdapter(s.DefaultAdapter)(o)
		WithDefaultSelector(s.DefaultSelector)(o)
		o.async = append(o.async,
			WithWorkers(s.Async.Workers),
			WithQueueSize(s.Async.QueueSize),
			WithOrderedTypes(s.Async.OrderedTypes...),
		)
	}
}
