package eventcore

import (
	"context"
	"fmt"
	"reflect"
)

// Observer receives events.
type Observer interface {
	Notify(ctx context.Context, evt *Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, evt *Event) error

// Notify calls f(ctx, evt).
func (f ObserverFunc) Notify(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

// Subscription is one registered observer on a manager.
type Subscription struct {
	// ID uniquely identifies the subscription.
	ID string
	// Observer is the bound capability the notifier calls.
	Observer Observer
	// Selector is the member name the target was bound with.
	Selector string
	// Target is the value passed to Observe, or the Observer itself.
	Target any

	manager *Manager
}

// Manager returns the manager holding the subscription.
func (s *Subscription) Manager() *Manager {
	return s.manager
}

// Describe returns a human readable description of the subscriber, used in
// delivery logs. Targets implementing fmt.Stringer describe themselves.
func (s *Subscription) Describe() string {
	if str, ok := s.Target.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T#%s", s.Target, s.Selector)
}

// Bind adapts target to an Observer using the exported method named selector.
//
// Accepted method signatures:
//
//	func(*Event)
//	func(*Event) error
//	func(context.Context, *Event)
//	func(context.Context, *Event) error
//
// A function with one of those signatures, or an Observer, is accepted when
// selector is DefaultSelector; an Observer is also accepted with "Notify".
// Anything else fails with a *SelectorError.
func Bind(target any, selector string) (Observer, error) {
	return bind(target, selector, DefaultSelector)
}

func bind(target any, selector, defaultSelector string) (Observer, error) {
	reject := func(reason string) error {
		return &SelectorError{Target: fmt.Sprintf("%T", target), Selector: selector, Reason: reason}
	}
	if target == nil {
		return nil, reject("target is nil")
	}
	if selector == "" {
		selector = defaultSelector
	}

	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Func {
		if v.IsNil() {
			return nil, reject("function is nil")
		}
		if selector != defaultSelector {
			return nil, reject("functions can only be bound with the default selector " + defaultSelector)
		}
		if o, ok := target.(Observer); ok {
			return o, nil
		}
		if o, ok := adaptFunc(target); ok {
			return o, nil
		}
		return nil, reject(fmt.Sprintf("unsupported function signature %s", v.Type()))
	}

	if m := v.MethodByName(selector); m.IsValid() {
		if o, ok := adaptFunc(m.Interface()); ok {
			return o, nil
		}
		return nil, reject(fmt.Sprintf("unsupported method signature %s", m.Type()))
	}

	if o, ok := target.(Observer); ok && selector == defaultSelector {
		return o, nil
	}
	return nil, reject("no exported method with that name")
}

func adaptFunc(fn any) (Observer, bool) {
	switch f := fn.(type) {
	case func(context.Context, *Event) error:
		return ObserverFunc(f), true
	case func(context.Context, *Event):
		return ObserverFunc(func(ctx context.Context, evt *Event) error {
			f(ctx, evt)
			return nil
		}), true
	case func(*Event) error:
		return ObserverFunc(func(_ context.Context, evt *Event) error {
			return f(evt)
		}), true
	case func(*Event):
		return ObserverFunc(func(_ context.Context, evt *Event) error {
			f(evt)
			return nil
		}), true
	}
	return nil, false
}
