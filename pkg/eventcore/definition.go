package eventcore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// Construction strategies recorded on a Definition.
const (
	StrategyDefine = "define"
	StrategyExtend = "extend"
)

// Definition is the immutable description of an event type: its type alias,
// payload and metadata schemas, and delivery preferences.
type Definition struct {
	typ      string
	name     string
	strategy string
	payload  schema.Schema
	metadata schema.Schema
	adapter  string
	selector string
	abstract bool
	base     *Definition
}

type definitionConfig struct {
	name     string
	payload  *schema.Schema
	metadata *schema.Schema
	adapter  string
	selector string
	abstract bool
	base     *Definition
	err      error
}

// DefinitionOption configures NewDefinition.
type DefinitionOption func(*definitionConfig)

// WithName sets the definition name. Default: the type in CamelCase.
func WithName(name string) DefinitionOption {
	return func(c *definitionConfig) {
		c.name = name
	}
}

// WithPayload declares the payload attributes.
func WithPayload(fields ...schema.Field) DefinitionOption {
	return func(c *definitionConfig) {
		s, err := schema.New(fields...)
		if err != nil {
			c.err = fmt.Errorf("payload: %w", err)
			return
		}
		c.payload = &s
	}
}

// WithPayloadSchema sets a compiled payload schema.
func WithPayloadSchema(s schema.Schema) DefinitionOption {
	return func(c *definitionConfig) {
		c.payload = &s
	}
}

// WithMetadata declares the metadata attributes.
func WithMetadata(fields ...schema.Field) DefinitionOption {
	return func(c *definitionConfig) {
		s, err := schema.New(fields...)
		if err != nil {
			c.err = fmt.Errorf("metadata: %w", err)
			return
		}
		c.metadata = &s
	}
}

// WithMetadataSchema sets a compiled metadata schema.
func WithMetadataSchema(s schema.Schema) DefinitionOption {
	return func(c *definitionConfig) {
		c.metadata = &s
	}
}

// WithAdapter binds the type to the named adapter.
// Default: the registry's default adapter.
func WithAdapter(name string) DefinitionOption {
	return func(c *definitionConfig) {
		c.adapter = name
	}
}

// WithSelector sets the member name used by Observe when none is given.
// Default: the registry's default selector.
func WithSelector(selector string) DefinitionOption {
	return func(c *definitionConfig) {
		c.selector = selector
	}
}

// Abstract marks the definition as a base for others. Abstract definitions
// cannot be registered.
func Abstract() DefinitionOption {
	return func(c *definitionConfig) {
		c.abstract = true
	}
}

// Extends composes the definition on top of base. Payload and metadata
// fields, adapter and selector are inherited unless overridden; the type is
// inherited when NewDefinition is given an empty one.
func Extends(base *Definition) DefinitionOption {
	return func(c *definitionConfig) {
		c.base = base
	}
}

// NewDefinition builds an immutable definition for typ.
//
// Example:
//
//	def, err := eventcore.NewDefinition("user_registered",
//	    eventcore.WithPayload(schema.Attr("user_id", schema.TypeInt)),
//	    eventcore.WithAdapter(eventcore.AdapterAsync),
//	)
func NewDefinition(typ string, opts ...DefinitionOption) (*Definition, error) {
	var cfg definitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, typ, cfg.err)
	}

	d := &Definition{
		typ:      strings.TrimSpace(typ),
		strategy: StrategyDefine,
		adapter:  cfg.adapter,
		selector: cfg.selector,
		abstract: cfg.abstract,
		base:     cfg.base,
	}
	if cfg.payload != nil {
		d.payload = *cfg.payload
	}
	if cfg.metadata != nil {
		d.metadata = *cfg.metadata
	}

	if base := cfg.base; base != nil {
		d.strategy = StrategyExtend
		if d.typ == "" {
			d.typ = base.typ
		}
		d.payload = schema.Merge(base.payload, d.payload)
		d.metadata = schema.Merge(base.metadata, d.metadata)
		if d.adapter == "" {
			d.adapter = base.adapter
		}
		if d.selector == "" {
			d.selector = base.selector
		}
	}

	if d.typ == "" {
		return nil, fmt.Errorf("%w: event type is required", ErrInvalidDefinition)
	}
	if strings.ContainsFunc(d.typ, unicode.IsSpace) {
		return nil, fmt.Errorf("%w: event type %q contains whitespace", ErrInvalidDefinition, d.typ)
	}

	d.name = cfg.name
	if d.name == "" {
		d.name = camelCase(d.typ)
	}
	return d, nil
}

// MustDefinition is like NewDefinition but panics on error.
func MustDefinition(typ string, opts ...DefinitionOption) *Definition {
	d, err := NewDefinition(typ, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Type returns the event type alias.
func (d *Definition) Type() string { return d.typ }

// Name returns the definition name.
func (d *Definition) Name() string { return d.name }

// Strategy returns StrategyDefine or StrategyExtend.
func (d *Definition) Strategy() string { return d.strategy }

// Payload returns the payload schema, base fields included.
func (d *Definition) Payload() schema.Schema { return d.payload }

// Metadata returns the metadata schema, base fields included.
func (d *Definition) Metadata() schema.Schema { return d.metadata }

// Adapter returns the declared adapter name, empty for the default.
func (d *Definition) Adapter() string { return d.adapter }

// Selector returns the declared default selector, empty for the default.
func (d *Definition) Selector() string { return d.selector }

// IsAbstract reports whether the definition was built with Abstract.
func (d *Definition) IsAbstract() bool { return d.abstract }

// Base returns the extended definition, or nil.
func (d *Definition) Base() *Definition { return d.base }

// Lineage returns d followed by every definition it extends, nearest first.
func (d *Definition) Lineage() []*Definition {
	var out []*Definition
	for cur := d; cur != nil; cur = cur.base {
		out = append(out, cur)
	}
	return out
}

// NewEvent validates payload and metadata and builds an event of this type.
func (d *Definition) NewEvent(payload, metadata map[string]any, opts ...EventOption) (*Event, error) {
	p, err := d.payload.Validate(payload)
	if err != nil {
		return nil, fmt.Errorf("%s payload: %w", d.typ, err)
	}
	m, err := d.metadata.Validate(metadata)
	if err != nil {
		return nil, fmt.Errorf("%s metadata: %w", d.typ, err)
	}
	return NewEvent(d.typ, p, m, opts...), nil
}

// camelCase turns "user_registered" or "user.registered" into "UserRegistered".
func camelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' || r == '.' || r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
