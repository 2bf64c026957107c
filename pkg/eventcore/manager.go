package eventcore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Hook runs before or after the subscribers of an event are notified.
type Hook func(ctx context.Context, evt *Event) error

// ErrorHook runs once per failed subscriber, after the after-emit hooks.
type ErrorHook func(ctx context.Context, evt *Event, err error) error

// Defaults carries the process-wide values a Manager falls back to when its
// Definition leaves adapter or selector empty.
type Defaults struct {
	Adapter  string
	Selector string
}

func (d Defaults) withFallbacks() Defaults {
	if d.Adapter == "" {
		d.Adapter = DefaultAdapter
	}
	if d.Selector == "" {
		d.Selector = DefaultSelector
	}
	return d
}

// Manager holds the subscriptions and hooks of one event type.
// It is safe for concurrent use; the notifier works on a snapshot, so
// subscriptions added during a notification take effect on the next one.
type Manager struct {
	def      *Definition
	adapter  string
	selector string

	mu      sync.RWMutex
	subs    []*Subscription
	before  []Hook
	after   []Hook
	onError []ErrorHook
}

// NewManager creates a manager for def, resolving adapter and selector
// against defaults.
func NewManager(def *Definition, defaults Defaults) *Manager {
	defaults = defaults.withFallbacks()
	m := &Manager{
		def:      def,
		adapter:  def.Adapter(),
		selector: def.Selector(),
	}
	if m.adapter == "" {
		m.adapter = defaults.Adapter
	}
	if m.selector == "" {
		m.selector = defaults.Selector
	}
	return m
}

// Definition returns the definition the manager was built from.
func (m *Manager) Definition() *Definition { return m.def }

// Type returns the managed event type.
func (m *Manager) Type() string { return m.def.Type() }

// AdapterName returns the resolved adapter name.
func (m *Manager) AdapterName() string { return m.adapter }

// DefaultSelector returns the resolved default selector.
func (m *Manager) DefaultSelector() string { return m.selector }

// NewEvent validates the raw attributes against the definition.
func (m *Manager) NewEvent(payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	return m.def.NewEvent(payload, metadata, opts...)
}

// Observe binds target's member selector as a subscriber. An empty selector
// uses the manager's default selector. The same target may be observed more
// than once; each call adds a subscription.
func (m *Manager) Observe(target any, selector string) (*Subscription, error) {
	if selector == "" {
		selector = m.selector
	}
	o, err := bind(target, selector, m.selector)
	if err != nil {
		return nil, err
	}
	return m.add(&Subscription{Observer: o, Selector: selector, Target: target}), nil
}

// Subscribe registers o directly.
func (m *Manager) Subscribe(o Observer) *Subscription {
	return m.add(&Subscription{Observer: o, Selector: "Notify", Target: o})
}

func (m *Manager) add(sub *Subscription) *Subscription {
	sub.ID = uuid.NewString()
	sub.manager = m

	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub
}

// Unobserve removes sub. Returns ErrSubscriptionNotFound if the manager
// does not hold it.
func (m *Manager) Unobserve(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.subs, func(s *Subscription) bool { return s.ID == sub.ID })
	if i < 0 {
		return fmt.Errorf("%w: %s on %s", ErrSubscriptionNotFound, sub.ID, m.Type())
	}
	m.subs = slices.Delete(m.subs, i, i+1)
	return nil
}

// BeforeEmit appends a hook run before any subscriber.
func (m *Manager) BeforeEmit(h Hook) {
	m.mu.Lock()
	m.before = append(m.before, h)
	m.mu.Unlock()
}

// AfterEmit appends a hook run after every subscriber, whatever their outcome.
func (m *Manager) AfterEmit(h Hook) {
	m.mu.Lock()
	m.after = append(m.after, h)
	m.mu.Unlock()
}

// OnError appends a hook run once per failed subscriber.
func (m *Manager) OnError(h ErrorHook) {
	m.mu.Lock()
	m.onError = append(m.onError, h)
	m.mu.Unlock()
}

// Subscriptions returns the subscriptions in registration order.
func (m *Manager) Subscriptions() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.subs)
}

// Observers returns the subscribed targets in registration order.
func (m *Manager) Observers() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]any, len(m.subs))
	for i, s := range m.subs {
		out[i] = s.Target
	}
	return out
}

// managerSnapshot is the stable view a notification iterates.
type managerSnapshot struct {
	subs    []*Subscription
	before  []Hook
	after   []Hook
	onError []ErrorHook
}

func (m *Manager) snapshot() managerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return managerSnapshot{
		subs:    slices.Clone(m.subs),
		before:  slices.Clone(m.before),
		after:   slices.Clone(m.after),
		onError: slices.Clone(m.onError),
	}
}

// adopt copies the subscriptions and hooks of prev into m, re-parenting the
// subscriptions. Used when a type is redefined in place.
func (m *Manager) adopt(prev *Manager) {
	snap := prev.snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snap.subs {
		cp := *s
		cp.manager = m
		m.subs = append(m.subs, &cp)
	}
	m.before = append(m.before, snap.before...)
	m.after = append(m.after, snap.after...)
	m.onError = append(m.onError, snap.onError...)
}
