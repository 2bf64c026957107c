package eventcore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/eventcore/pkg/eventcore/registry"
)

// Built-in adapter names.
const (
	AdapterSync  = "sync"
	AdapterAsync = "async"
)

// Adapter decides how the notifier runs for an emitted event.
type Adapter interface {
	Dispatch(ctx context.Context, n *Notifier, m *Manager, evt *Event) error
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, n *Notifier, m *Manager, evt *Event) error

// Dispatch calls f(ctx, n, m, evt).
func (f AdapterFunc) Dispatch(ctx context.Context, n *Notifier, m *Manager, evt *Event) error {
	return f(ctx, n, m, evt)
}

// closer is implemented by adapters holding resources.
type closer interface {
	Close(ctx context.Context) error
}

// SyncAdapter runs the notifier inline and returns its error.
type SyncAdapter struct{}

// Dispatch notifies m's subscribers on the calling goroutine.
func (SyncAdapter) Dispatch(ctx context.Context, n *Notifier, m *Manager, evt *Event) error {
	return n.Notify(ctx, m, evt)
}

// AdapterRegistry maps names to adapters. Names are write-once.
// It is safe for concurrent use.
type AdapterRegistry struct {
	adapters *registry.Registry[string, Adapter]
}

// NewAdapterRegistry creates a registry holding the built-in "sync" and
// "async" adapters. The async adapter starts its workers on first use.
func NewAdapterRegistry(async ...AsyncOption) *AdapterRegistry {
	r := &AdapterRegistry{adapters: registry.New[string, Adapter]()}
	r.adapters.Insert(AdapterSync, SyncAdapter{})
	r.adapters.Insert(AdapterAsync, NewAsyncAdapter(async...))
	return r
}

// Register adds a named adapter.
// Fails with *DuplicateAdapterError if name is taken, built-ins included.
func (r *AdapterRegistry) Register(name string, a Adapter) error {
	if name == "" || a == nil {
		return errors.New("register adapter: name and adapter are required")
	}
	if !r.adapters.Insert(name, a) {
		return &DuplicateAdapterError{Name: name}
	}
	return nil
}

// Resolve returns the adapter registered under name.
// Fails with *UnknownAdapterError if absent.
func (r *AdapterRegistry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters.Get(name)
	if !ok {
		return nil, &UnknownAdapterError{Name: name}
	}
	return a, nil
}

// Names returns the registered names in sorted order.
func (r *AdapterRegistry) Names() []string {
	names := r.adapters.Keys()
	slices.Sort(names)
	return names
}

// Close stops every adapter that holds resources.
func (r *AdapterRegistry) Close(ctx context.Context) error {
	var errs []error
	r.adapters.Range(func(name string, a Adapter) bool {
		if c, ok := a.(closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close adapter %s: %w", name, err))
			}
		}
		return true
	})
	return errors.Join(errs...)
}
