package codec

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/registry"
	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// Built-in codec names.
const (
	NameJSON        = "json"
	NameMsgpack     = "msgpack"
	NameCloudEvents = "cloudevents"
)

// Codec converts events to and from bytes.
type Codec interface {
	// Name returns the registered codec name.
	Name() string
	// ContentType returns the MIME type of the encoded form.
	ContentType() string
	// Serialize encodes evt. Fails with *SerializationError.
	Serialize(evt *eventcore.Event) ([]byte, error)
	// Deserialize decodes data. Fails with *DeserializationError.
	Deserialize(data []byte) (*eventcore.Event, error)
}

// Builder validates decoded attributes and builds the event.
// *eventcore.ManagerRegistry implements it.
type Builder interface {
	NewEvent(typ string, payload, metadata map[string]any, opts ...eventcore.EventOption) (*eventcore.Event, error)
}

var _ Builder = (*eventcore.ManagerRegistry)(nil)

// ErrUnknownCodec indicates no codec is registered under the name.
var ErrUnknownCodec = errors.New("unknown codec")

// SerializationError reports an event that could not be encoded.
type SerializationError struct {
	Codec     string
	EventType string
	Err       error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s: serialize %s: %v", e.Codec, e.EventType, e.Err)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// DeserializationError reports data that could not be decoded into an event.
type DeserializationError struct {
	Codec string
	Err   error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("%s: deserialize: %v", e.Codec, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// Option configures a codec.
type Option func(*options)

type options struct {
	builder Builder
	source  string
}

// WithBuilder validates decoded events through b. Without a builder,
// decoded attributes are kept as they came off the wire.
func WithBuilder(b Builder) Option {
	return func(o *options) {
		o.builder = b
	}
}

// WithSource sets the CloudEvents source attribute. Default: "eventcore".
func WithSource(source string) Option {
	return func(o *options) {
		if source != "" {
			o.source = source
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{source: "eventcore"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Factory creates a codec.
type Factory func(opts ...Option) Codec

var factories = newFactories()

func newFactories() *registry.Registry[string, Factory] {
	r := registry.New[string, Factory]()
	r.Insert(NameJSON, func(opts ...Option) Codec { return NewJSON(opts...) })
	r.Insert(NameMsgpack, func(opts ...Option) Codec { return NewMsgpack(opts...) })
	r.Insert(NameCloudEvents, func(opts ...Option) Codec { return NewCloudEvents(opts...) })
	return r
}

// Register adds a named codec factory. Names are write-once.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.New("register codec: name and factory are required")
	}
	if !factories.Insert(name, f) {
		return fmt.Errorf("codec %q already registered", name)
	}
	return nil
}

// New creates the codec registered under name.
func New(name string, opts ...Option) (Codec, error) {
	f, ok := factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return f(opts...), nil
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := factories.Keys()
	slices.Sort(names)
	return names
}

// envelope is the wire form shared by the json and msgpack codecs.
type envelope struct {
	ID       string         `json:"id" msgpack:"id"`
	Type     string         `json:"type" msgpack:"type"`
	Payload  map[string]any `json:"payload" msgpack:"payload"`
	Metadata map[string]any `json:"metadata" msgpack:"metadata"`
}

func newEnvelope(evt *eventcore.Event) envelope {
	return envelope{
		ID:       evt.ID(),
		Type:     evt.Type(),
		Payload:  wireValues(evt.Payload()),
		Metadata: wireValues(evt.Metadata()),
	}
}

func (e envelope) validate() error {
	var missing []string
	if e.Type == "" {
		missing = append(missing, "type")
	}
	if e.Payload == nil {
		missing = append(missing, "payload")
	}
	if e.Metadata == nil {
		missing = append(missing, "metadata")
	}
	if len(missing) > 0 {
		return fmt.Errorf("envelope is missing %v", missing)
	}
	return nil
}

// wireValues copies attrs, rendering durations in their string form so they
// survive encoders that would otherwise write bare nanoseconds.
func wireValues(attrs schema.Attributes) map[string]any {
	m := attrs.Map()
	for k, v := range m {
		if d, ok := v.(time.Duration); ok {
			m[k] = d.String()
		}
	}
	return m
}

// build turns a decoded envelope into an event.
func (o options) build(codec string, env envelope) (*eventcore.Event, error) {
	if err := env.validate(); err != nil {
		return nil, &DeserializationError{Codec: codec, Err: err}
	}
	if o.builder == nil {
		return eventcore.NewEvent(env.Type, schema.Raw(env.Payload), schema.Raw(env.Metadata), eventcore.WithEventID(env.ID)), nil
	}
	evt, err := o.builder.NewEvent(env.Type, env.Payload, env.Metadata, eventcore.WithEventID(env.ID))
	if err != nil {
		return nil, &DeserializationError{Codec: codec, Err: err}
	}
	return evt, nil
}

func serializeError(codec string, evt *eventcore.Event, err error) error {
	typ := "<nil>"
	if evt != nil {
		typ = evt.Type()
	}
	return &SerializationError{Codec: codec, EventType: typ, Err: err}
}

var errNilEvent = errors.New("event is nil")
