package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/golobby/cast"
	"github.com/google/uuid"

	"github.com/randalmurphal/eventcore/pkg/eventcore/registry"
)

// Built-in converter names.
const (
	TypeAny      = "any"
	TypeString   = "string"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBool     = "bool"
	TypeTime     = "time"
	TypeDuration = "duration"
	TypeUUID     = "uuid"
)

// Sentinel errors for converter tables.
var (
	// ErrDuplicateType indicates a converter name is already defined.
	ErrDuplicateType = errors.New("attribute type already defined")

	// ErrUnknownType indicates a field references an undefined converter.
	ErrUnknownType = errors.New("unknown attribute type")
)

// Converter coerces a raw value into the canonical Go value of a type.
type Converter func(v any) (any, error)

// Types is a table of named converters.
type Types struct {
	table *registry.Registry[string, Converter]
}

// NewTypes returns a table pre-populated with the built-in converters.
func NewTypes() *Types {
	t := &Types{table: registry.New[string, Converter]()}
	t.table.Insert(TypeAny, func(v any) (any, error) { return v, nil })
	t.table.Insert(TypeString, toString)
	t.table.Insert(TypeInt, toInt)
	t.table.Insert(TypeFloat, toFloat)
	t.table.Insert(TypeBool, toBool)
	t.table.Insert(TypeTime, toTime)
	t.table.Insert(TypeDuration, toDuration)
	t.table.Insert(TypeUUID, toUUID)
	return t
}

// DefaultTypes is the process-wide converter table.
var DefaultTypes = NewTypes()

// Define adds a named converter. Names are write-once.
func (t *Types) Define(name string, c Converter) error {
	if name == "" || c == nil {
		return fmt.Errorf("define attribute type %q: name and converter are required", name)
	}
	if !t.table.Insert(name, c) {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	return nil
}

// Resolve returns the converter registered under name.
// An empty name resolves to TypeAny.
func (t *Types) Resolve(name string) (Converter, error) {
	if name == "" {
		name = TypeAny
	}
	c, ok := t.table.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return c, nil
}

// Has reports whether name is defined.
func (t *Types) Has(name string) bool {
	return t.table.Has(name)
}

func mismatch(want string, v any) error {
	return fmt.Errorf("expected %s, got %T", want, v)
}

func toString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return nil, mismatch("string", v)
}

var intType = reflect.TypeOf(0)

func toInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case string:
		out, err := cast.FromType(n, intType)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", n, err)
		}
		return out, nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int", u)
		}
		return int(u), nil
	}
	return nil, mismatch("int", v)
}

func floatToInt(f float64) (any, error) {
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("float %v has a fractional part", f)
	}
	return int(f), nil
}

var floatType = reflect.TypeOf(float64(0))

func toFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		out, err := cast.FromType(n, floatType)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", n, err)
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, mismatch("float", v)
}

var boolType = reflect.TypeOf(false)

func toBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		out, err := cast.FromType(b, boolType)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", b, err)
		}
		return out, nil
	}
	return nil, mismatch("bool", v)
}

func toTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", t, err)
		}
		return parsed, nil
	}
	return nil, mismatch("time", v)
}

func toDuration(v any) (any, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", d, err)
		}
		return parsed, nil
	}
	return nil, mismatch("duration", v)
}

func toUUID(v any) (any, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id.String(), nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", id, err)
		}
		return parsed.String(), nil
	}
	return nil, mismatch("uuid", v)
}
