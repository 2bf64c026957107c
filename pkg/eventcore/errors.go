package eventcore

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for type and adapter registration.
var (
	// ErrAlreadyManaged indicates the type, or a type it extends, already has a manager.
	ErrAlreadyManaged = errors.New("event type already managed")

	// ErrUnmanaged indicates no manager is registered for the type.
	ErrUnmanaged = errors.New("event type not managed")

	// ErrInvalidDefinition indicates a definition cannot be built or registered.
	ErrInvalidDefinition = errors.New("invalid event definition")

	// ErrDuplicateAdapter indicates the adapter name is taken, built-ins included.
	ErrDuplicateAdapter = errors.New("adapter already registered")

	// ErrUnknownAdapter indicates no adapter is registered under the name.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// Sentinel errors for subscriptions.
var (
	// ErrInvalidSelector indicates a target cannot be bound with the given selector.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrSubscriptionNotFound indicates Unobserve was given a subscription the manager does not hold.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Sentinel errors for asynchronous delivery.
var (
	// ErrQueueFull indicates the async queue is at capacity.
	ErrQueueFull = errors.New("async queue full")

	// ErrAdapterClosed indicates the adapter was stopped.
	ErrAdapterClosed = errors.New("adapter closed")
)

// AlreadyManagedTypeError reports a registration conflicting with an existing manager.
type AlreadyManagedTypeError struct {
	// Type is the type being registered.
	Type string
	// Managed is the type in the definition's lineage that already has a manager.
	Managed string
}

// Error implements the error interface.
func (e *AlreadyManagedTypeError) Error() string {
	if e.Managed != "" && e.Managed != e.Type {
		return fmt.Sprintf("event type %q extends managed type %q", e.Type, e.Managed)
	}
	return fmt.Sprintf("event type %q already managed", e.Type)
}

// Unwrap returns ErrAlreadyManaged for errors.Is support.
func (e *AlreadyManagedTypeError) Unwrap() error {
	return ErrAlreadyManaged
}

// UnmanagedTypeError reports an operation on a type without a manager.
type UnmanagedTypeError struct {
	// Type is the type that was looked up.
	Type string
}

// Error implements the error interface.
func (e *UnmanagedTypeError) Error() string {
	return fmt.Sprintf("event type %q not managed", e.Type)
}

// Unwrap returns ErrUnmanaged for errors.Is support.
func (e *UnmanagedTypeError) Unwrap() error {
	return ErrUnmanaged
}

// DuplicateAdapterError reports an adapter name registered twice.
type DuplicateAdapterError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateAdapterError) Error() string {
	return fmt.Sprintf("adapter %q already registered", e.Name)
}

// Unwrap returns ErrDuplicateAdapter for errors.Is support.
func (e *DuplicateAdapterError) Unwrap() error {
	return ErrDuplicateAdapter
}

// UnknownAdapterError reports a lookup of an unregistered adapter name.
type UnknownAdapterError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q", e.Name)
}

// Unwrap returns ErrUnknownAdapter for errors.Is support.
func (e *UnknownAdapterError) Unwrap() error {
	return ErrUnknownAdapter
}

// SelectorError reports a target that cannot be bound as an observer.
type SelectorError struct {
	// Target is the %T of the rejected target.
	Target string
	// Selector is the member name that was requested.
	Selector string
	// Reason explains the rejection.
	Reason string
}

// Error implements the error interface.
func (e *SelectorError) Error() string {
	return fmt.Sprintf("bind %s#%s: %s", e.Target, e.Selector, e.Reason)
}

// Unwrap returns ErrInvalidSelector for errors.Is support.
func (e *SelectorError) Unwrap() error {
	return ErrInvalidSelector
}

// PanicError captures a panic raised while notifying a subscriber.
// It includes the stack trace for debugging.
type PanicError struct {
	// Subscriber describes the subscriber that panicked.
	Subscriber string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("subscriber %s panicked: %v", e.Subscriber, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FailedSubscribersError aggregates every subscriber failure of one notification.
type FailedSubscribersError struct {
	// Event is the event being delivered.
	Event *Event
	// Errors holds one error per failed subscriber, in visit order.
	Errors []error
}

// Error implements the error interface.
func (e *FailedSubscribersError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d subscriber(s) failed", len(e.Errors))
	if e.Event != nil {
		fmt.Fprintf(&b, " for %s (%s)", e.Event.Type(), e.Event.ID())
	}
	for i, err := range e.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the captured errors for errors.Is/As support.
func (e *FailedSubscribersError) Unwrap() []error {
	return e.Errors
}
