package eventcore

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// Event is one immutable occurrence of an event type.
type Event struct {
	id       string
	typ      string
	payload  schema.Attributes
	metadata schema.Attributes
}

// EventOption configures an Event at construction.
type EventOption func(*Event)

// WithEventID sets the event ID instead of generating one.
// Codecs use it to keep the ID across the wire.
func WithEventID(id string) EventOption {
	return func(e *Event) {
		if id != "" {
			e.id = id
		}
	}
}

// NewEvent builds an event from already validated attribute sets.
// Most callers go through Definition.NewEvent or ManagerRegistry.NewEvent,
// which validate raw maps first.
func NewEvent(typ string, payload, metadata schema.Attributes, opts ...EventOption) *Event {
	e := &Event{
		typ:      typ,
		payload:  payload,
		metadata: metadata,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e
}

// ID returns the event ID.
func (e *Event) ID() string { return e.id }

// Type returns the event type.
func (e *Event) Type() string { return e.typ }

// Payload returns the validated payload.
func (e *Event) Payload() schema.Attributes { return e.payload }

// Metadata returns the validated metadata.
func (e *Event) Metadata() schema.Attributes { return e.metadata }

// String renders the event for logs.
func (e *Event) String() string {
	return fmt.Sprintf("%s(%s) payload=%s metadata=%s", e.typ, e.id, e.payload, e.metadata)
}
