package eventcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"already managed", &AlreadyManagedTypeError{Type: "a"}, ErrAlreadyManaged, `event type "a" already managed`},
		{"already managed via base", &AlreadyManagedTypeError{Type: "a", Managed: "b"}, ErrAlreadyManaged, `event type "a" extends managed type "b"`},
		{"unmanaged", &UnmanagedTypeError{Type: "a"}, ErrUnmanaged, `event type "a" not managed`},
		{"duplicate adapter", &DuplicateAdapterError{Name: "sync"}, ErrDuplicateAdapter, `adapter "sync" already registered`},
		{"unknown adapter", &UnknownAdapterError{Name: "x"}, ErrUnknownAdapter, `unknown adapter "x"`},
		{"selector", &SelectorError{Target: "int", Selector: "Call", Reason: "no method"}, ErrInvalidSelector, "bind int#Call: no method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	assert.ErrorIs(t, &PanicError{Subscriber: "s", Value: inner}, inner)
	assert.NoError(t, (&PanicError{Subscriber: "s", Value: "text"}).Unwrap())
	assert.Equal(t, "subscriber s panicked: text", (&PanicError{Subscriber: "s", Value: "text"}).Error())
}

func TestFailedSubscribersErrorMessage(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	evt := NewEvent("order_placed", rawAttrs(nil), rawAttrs(nil), WithEventID("id-1"))
	err := &FailedSubscribersError{Event: evt, Errors: []error{e1, e2}}

	assert.Equal(t, "2 subscriber(s) failed for order_placed (id-1): first; second", err.Error())
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}
