package eventcore

import (
	"context"
	"log/slog"
	"sync"
)

// System wires a ManagerRegistry, an AdapterRegistry, a Notifier and a
// Broadcaster together and offers a facade over them.
type System struct {
	managers    *ManagerRegistry
	adapters    *AdapterRegistry
	notifier    *Notifier
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewSystem builds a system. Definitions that name no adapter use "sync",
// and Observe calls without a selector use "Call", unless overridden with
// WithDefaultAdapter and WithDefaultSelector.
func NewSystem(opts ...Option) *System {
	o := buildOptions(opts)

	async := append([]AsyncOption{
		WithAsyncLogger(o.logger),
		WithAsyncMetrics(o.metrics),
	}, o.async...)

	managers := NewManagerRegistry(
		WithRegistryDefaults(o.defaults),
		WithRegistryLogger(o.logger),
	)
	adapters := NewAdapterRegistry(async...)
	notifier := newNotifier(o)

	return &System{
		managers:    managers,
		adapters:    adapters,
		notifier:    notifier,
		broadcaster: newBroadcaster(managers, adapters, notifier, o),
		logger:      o.logger,
	}
}

// Managers returns the manager registry.
func (s *System) Managers() *ManagerRegistry { return s.managers }

// Adapters returns the adapter registry.
func (s *System) Adapters() *AdapterRegistry { return s.adapters }

// Notifier returns the notifier.
func (s *System) Notifier() *Notifier { return s.notifier }

// Broadcaster returns the broadcaster.
func (s *System) Broadcaster() *Broadcaster { return s.broadcaster }

// Logger returns the logger the system was built with.
func (s *System) Logger() *slog.Logger { return s.logger }

// Define builds a definition for typ and registers it.
func (s *System) Define(typ string, opts ...DefinitionOption) (*Manager, error) {
	def, err := NewDefinition(typ, opts...)
	if err != nil {
		return nil, err
	}
	return s.managers.Register(def)
}

// Register registers a prebuilt definition.
func (s *System) Register(def *Definition) (*Manager, error) {
	return s.managers.Register(def)
}

// Undefine removes the manager for typ.
func (s *System) Undefine(typ string) error {
	return s.managers.Unregister(typ)
}

// Redefine replaces the definition of a managed type, keeping its
// subscriptions and hooks.
func (s *System) Redefine(def *Definition) (*Manager, error) {
	return s.managers.Replace(def)
}

// Manager returns the manager for typ.
func (s *System) Manager(typ string) (*Manager, error) {
	return s.managers.Lookup(typ)
}

// IsManaged reports whether typ has a manager.
func (s *System) IsManaged(typ string) bool {
	return s.managers.IsManaged(typ)
}

// Types returns the managed types in sorted order.
func (s *System) Types() []string {
	return s.managers.Types()
}

// Observe binds target's member selector to typ.
func (s *System) Observe(typ string, target any, selector string) (*Subscription, error) {
	m, err := s.managers.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return m.Observe(target, selector)
}

// Subscribe registers o on typ.
func (s *System) Subscribe(typ string, o Observer) (*Subscription, error) {
	m, err := s.managers.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return m.Subscribe(o), nil
}

// Observers returns the subscribed targets of typ in registration order.
func (s *System) Observers(typ string) ([]any, error) {
	m, err := s.managers.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return m.Observers(), nil
}

// Emit delivers evt. See Broadcaster.Emit.
func (s *System) Emit(ctx context.Context, evt *Event) error {
	return s.broadcaster.Emit(ctx, evt)
}

// RawEmit validates and emits. See Broadcaster.RawEmit.
func (s *System) RawEmit(ctx context.Context, typ string, payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	return s.broadcaster.RawEmit(ctx, typ, payload, metadata, opts...)
}

// RegisterAdapter adds a named adapter.
func (s *System) RegisterAdapter(name string, a Adapter) error {
	return s.adapters.Register(name, a)
}

// ResolveAdapter returns a named adapter.
func (s *System) ResolveAdapter(name string) (Adapter, error) {
	return s.adapters.Resolve(name)
}

// Reset removes every manager. Adapters are kept.
func (s *System) Reset() {
	s.managers.Reset()
}

// Close stops the adapters, waiting for queued async events or ctx.
func (s *System) Close(ctx context.Context) error {
	return s.adapters.Close(ctx)
}

var (
	defaultMu     sync.Mutex
	defaultSystem *System
)

// Default returns the process-wide system, building it on first use.
func Default() *System {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSystem == nil {
		defaultSystem = NewSystem()
	}
	return defaultSystem
}

// SetDefault replaces the process-wide system and returns the previous one,
// which may be nil. The caller owns closing it.
func SetDefault(s *System) *System {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultSystem
	defaultSystem = s
	return prev
}

// ResetDefault closes the process-wide system and discards it; the next
// Default call builds a fresh one. Intended for test isolation.
func ResetDefault(ctx context.Context) error {
	prev := SetDefault(nil)
	if prev == nil {
		return nil
	}
	return prev.Close(ctx)
}

// Define registers typ on the default system.
func Define(typ string, opts ...DefinitionOption) (*Manager, error) {
	return Default().Define(typ, opts...)
}

// MustDefine is like Define but panics on error. Intended for package
// level declarations.
func MustDefine(typ string, opts ...DefinitionOption) *Manager {
	m, err := Define(typ, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Observe binds target on the default system.
func Observe(typ string, target any, selector string) (*Subscription, error) {
	return Default().Observe(typ, target, selector)
}

// Emit delivers evt on the default system.
func Emit(ctx context.Context, evt *Event) error {
	return Default().Emit(ctx, evt)
}

// RawEmit validates and emits on the default system.
func RawEmit(ctx context.Context, typ string, payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	return Default().RawEmit(ctx, typ, payload, metadata, opts...)
}
