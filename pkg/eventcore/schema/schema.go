package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrValidation is the sentinel matched by every *ValidationError.
var ErrValidation = errors.New("attribute validation failed")

// ValidationError reports every offending attribute of one Validate call.
type ValidationError struct {
	// Fields lists the offending attribute names in sorted order.
	Fields []string
	// Reasons maps each offending name to a short explanation.
	Reasons map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f+": "+e.Reasons[f])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Field declares one attribute.
type Field struct {
	Name       string
	Type       string
	Default    any
	HasDefault bool
	Optional   bool
}

// FieldOption configures a Field built with Attr.
type FieldOption func(*Field)

// Default sets the value used when the attribute is absent.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.Default = v
		f.HasDefault = true
	}
}

// Optional allows the attribute to be absent without a default.
func Optional() FieldOption {
	return func(f *Field) {
		f.Optional = true
	}
}

// Attr declares an attribute of the named converter type.
func Attr(name, typ string, opts ...FieldOption) Field {
	f := Field{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// FieldShape is the comparable form of a Field used for fingerprints.
type FieldShape struct {
	Name       string
	Type       string
	Optional   bool
	HasDefault bool
	Default    string
}

type compiledField struct {
	Field
	convert Converter
}

// Schema is an immutable, ordered set of attribute declarations.
// The zero value accepts only empty input.
type Schema struct {
	fields []compiledField
}

// New compiles fields against DefaultTypes.
func New(fields ...Field) (Schema, error) {
	return NewWithTypes(DefaultTypes, fields...)
}

// MustNew is like New but panics on error.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return s
}

// NewWithTypes compiles fields against the given converter table.
// Field names must be unique and non-empty; every type must resolve.
func NewWithTypes(types *Types, fields ...Field) (Schema, error) {
	if types == nil {
		types = DefaultTypes
	}
	seen := make(map[string]struct{}, len(fields))
	compiled := make([]compiledField, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Schema{}, errors.New("attribute name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return Schema{}, fmt.Errorf("attribute %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Type == "" {
			f.Type = TypeAny
		}
		conv, err := types.Resolve(f.Type)
		if err != nil {
			return Schema{}, fmt.Errorf("attribute %q: %w", f.Name, err)
		}
		if f.HasDefault && f.Default != nil {
			if _, err := conv(f.Default); err != nil {
				return Schema{}, fmt.Errorf("attribute %q: invalid default: %w", f.Name, err)
			}
		}
		compiled = append(compiled, compiledField{Field: f, convert: conv})
	}
	return Schema{fields: compiled}, nil
}

// Merge returns a schema holding base's fields followed by override's.
// A field declared in both keeps its position from base and its declaration
// from override.
func Merge(base, override Schema) Schema {
	out := make([]compiledField, 0, len(base.fields)+len(override.fields))
	replaced := make(map[string]compiledField, len(override.fields))
	for _, f := range override.fields {
		replaced[f.Name] = f
	}
	for _, f := range base.fields {
		if o, ok := replaced[f.Name]; ok {
			out = append(out, o)
			delete(replaced, f.Name)
			continue
		}
		out = append(out, f)
	}
	for _, f := range override.fields {
		if _, pending := replaced[f.Name]; pending {
			out = append(out, f)
		}
	}
	return Schema{fields: out}
}

// Fields returns the declarations in order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Field
	}
	return out
}

// Names returns the declared attribute names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of declared attributes.
func (s Schema) Len() int {
	return len(s.fields)
}

// Shape returns the comparable description of the schema.
func (s Schema) Shape() []FieldShape {
	out := make([]FieldShape, len(s.fields))
	for i, f := range s.fields {
		shape := FieldShape{
			Name:       f.Name,
			Type:       f.Type,
			Optional:   f.Optional,
			HasDefault: f.HasDefault,
		}
		if f.HasDefault {
			shape.Default = fmt.Sprintf("%#v", f.Default)
		}
		out[i] = shape
	}
	return out
}

// Validate coerces raw against the schema.
// Absent attributes take their default, optional ones are skipped, the rest
// are reported as missing. Undeclared keys are rejected.
func (s Schema) Validate(raw map[string]any) (Attributes, error) {
	reasons := make(map[string]string)
	values := make(map[string]any, len(s.fields))

	for _, f := range s.fields {
		v, present := raw[f.Name]
		if !present {
			switch {
			case f.HasDefault:
				v = f.Default
			case f.Optional:
				continue
			default:
				reasons[f.Name] = "required attribute is missing"
				continue
			}
		}
		if v == nil && (f.Optional || f.HasDefault) {
			values[f.Name] = nil
			continue
		}
		converted, err := f.convert(v)
		if err != nil {
			reasons[f.Name] = err.Error()
			continue
		}
		values[f.Name] = converted
	}

	for key := range raw {
		if !s.declares(key) {
			reasons[key] = "undeclared attribute"
		}
	}

	if len(reasons) > 0 {
		fields := make([]string, 0, len(reasons))
		for name := range reasons {
			fields = append(fields, name)
		}
		slices.Sort(fields)
		return Attributes{}, &ValidationError{Fields: fields, Reasons: reasons}
	}
	if len(values) == 0 {
		return Attributes{}, nil
	}
	return Attributes{values: values}, nil
}

func (s Schema) declares(name string) bool {
	for _, f := range s.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
