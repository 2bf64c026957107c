package eventcore

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
	"github.com/randalmurphal/eventcore/pkg/eventcore/registry"
)

// ManagerFactory builds the manager for a definition being registered.
type ManagerFactory func(def *Definition, defaults Defaults) (*Manager, error)

// ManagerRegistry maps event types to their managers.
// It is safe for concurrent use.
type ManagerRegistry struct {
	managers *registry.Registry[string, *Manager]
	defaults Defaults
	logger   *slog.Logger
}

// RegistryOption configures a ManagerRegistry.
type RegistryOption func(*ManagerRegistry)

// WithRegistryDefaults sets the adapter and selector managers fall back to.
func WithRegistryDefaults(d Defaults) RegistryOption {
	return func(r *ManagerRegistry) {
		r.defaults = d.withFallbacks()
	}
}

// WithRegistryLogger sets the logger used for registration events.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *ManagerRegistry) {
		r.logger = logger
	}
}

// NewManagerRegistry creates an empty registry.
func NewManagerRegistry(opts ...RegistryOption) *ManagerRegistry {
	r := &ManagerRegistry{
		managers: registry.New[string, *Manager](),
		defaults: Defaults{}.withFallbacks(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defaults returns the adapter and selector managers fall back to.
func (r *ManagerRegistry) Defaults() Defaults {
	return r.defaults
}

// Register creates and stores the manager for def.
// Fails with *AlreadyManagedTypeError if def's type, or any type it
// extends, is already managed.
func (r *ManagerRegistry) Register(def *Definition) (*Manager, error) {
	return r.RegisterFactory(def, nil)
}

// RegisterFactory is Register with a custom manager constructor.
// A nil factory uses NewManager.
func (r *ManagerRegistry) RegisterFactory(def *Definition, factory ManagerFactory) (*Manager, error) {
	if err := checkRegistrable(def); err != nil {
		return nil, err
	}
	if err := r.checkLineage(r.managers.Has, def, false); err != nil {
		return nil, err
	}

	mgr, err := r.build(def, factory)
	if err != nil {
		return nil, err
	}

	err = r.managers.Mutate(func(entries map[string]*Manager) error {
		if err := r.checkLineage(hasKey(entries), def, false); err != nil {
			return err
		}
		entries[def.Type()] = mgr
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.LogRegistered(r.logger, def.Type(), mgr.AdapterName(), Fingerprint(def).Digest())
	return mgr, nil
}

// Replace swaps the manager of an already managed type for one built from
// def, carrying subscriptions and hooks over. Used for hot reload.
func (r *ManagerRegistry) Replace(def *Definition) (*Manager, error) {
	if err := checkRegistrable(def); err != nil {
		return nil, err
	}
	mgr, err := r.build(def, nil)
	if err != nil {
		return nil, err
	}

	err = r.managers.Mutate(func(entries map[string]*Manager) error {
		prev, ok := entries[def.Type()]
		if !ok {
			return &UnmanagedTypeError{Type: def.Type()}
		}
		if err := r.checkLineage(hasKey(entries), def, true); err != nil {
			return err
		}
		mgr.adopt(prev)
		entries[def.Type()] = mgr
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.LogRegistered(r.logger, def.Type(), mgr.AdapterName(), Fingerprint(def).Digest())
	return mgr, nil
}

// Unregister removes the manager for typ.
// Fails with *UnmanagedTypeError if typ is not managed.
func (r *ManagerRegistry) Unregister(typ string) error {
	if !r.managers.Delete(typ) {
		return &UnmanagedTypeError{Type: typ}
	}
	return nil
}

// Lookup returns the manager for typ.
func (r *ManagerRegistry) Lookup(typ string) (*Manager, error) {
	m, ok := r.managers.Get(typ)
	if !ok {
		return nil, &UnmanagedTypeError{Type: typ}
	}
	return m, nil
}

// LookupEvent returns the manager for evt's type.
func (r *ManagerRegistry) LookupEvent(evt *Event) (*Manager, error) {
	if evt == nil {
		return nil, errors.New("lookup: event is nil")
	}
	return r.Lookup(evt.Type())
}

// IsManaged reports whether typ has a manager.
func (r *ManagerRegistry) IsManaged(typ string) bool {
	return r.managers.Has(typ)
}

// Types returns the managed types in sorted order.
func (r *ManagerRegistry) Types() []string {
	types := r.managers.Keys()
	slices.Sort(types)
	return types
}

// Len returns the number of managed types.
func (r *ManagerRegistry) Len() int {
	return r.managers.Len()
}

// Reset removes every manager. Intended for test isolation.
func (r *ManagerRegistry) Reset() {
	r.managers.Clear()
}

// NewEvent validates raw attributes through the manager of typ.
func (r *ManagerRegistry) NewEvent(typ string, payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	m, err := r.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return m.NewEvent(payload, metadata, opts...)
}

func (r *ManagerRegistry) build(def *Definition, factory ManagerFactory) (*Manager, error) {
	if factory == nil {
		return NewManager(def, r.defaults), nil
	}
	mgr, err := factory(def, r.defaults)
	if err != nil {
		return nil, fmt.Errorf("build manager for %s: %w", def.Type(), err)
	}
	if mgr == nil || mgr.Type() != def.Type() {
		return nil, fmt.Errorf("%w: factory for %s returned a manager of another type", ErrInvalidDefinition, def.Type())
	}
	return mgr, nil
}

// checkLineage fails if any type in def's lineage is managed. With
// skipSelf, def's own type is allowed to be managed.
func (r *ManagerRegistry) checkLineage(has func(string) bool, def *Definition, skipSelf bool) error {
	for _, d := range def.Lineage() {
		if skipSelf && d.Type() == def.Type() {
			continue
		}
		if has(d.Type()) {
			return &AlreadyManagedTypeError{Type: def.Type(), Managed: d.Type()}
		}
	}
	return nil
}

func checkRegistrable(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}
	if def.IsAbstract() {
		return fmt.Errorf("%w: %s is abstract", ErrInvalidDefinition, def.Type())
	}
	return nil
}

func hasKey(entries map[string]*Manager) func(string) bool {
	return func(k string) bool {
		_, ok := entries[k]
		return ok
	}
}
