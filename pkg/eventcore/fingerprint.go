package eventcore

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// Signature is the structural fingerprint of a Definition. Two definitions
// with equal signatures describe the same event type, so redefining one
// with the other is benign.
type Signature struct {
	Payload  []schema.FieldShape
	Metadata []schema.FieldShape
	Name     string
	Strategy string
	Type     string
	Selector string
	Adapter  string
}

// Fingerprint computes the signature of def. It is pure.
func Fingerprint(def *Definition) Signature {
	return Signature{
		Payload:  def.Payload().Shape(),
		Metadata: def.Metadata().Shape(),
		Name:     def.Name(),
		Strategy: def.Strategy(),
		Type:     def.Type(),
		Selector: def.Selector(),
		Adapter:  def.Adapter(),
	}
}

// Equal reports componentwise equality.
func (s Signature) Equal(other Signature) bool {
	return len(s.Diff(other)) == 0
}

// Diff names the components that differ, in a fixed order.
func (s Signature) Diff(other Signature) []string {
	var out []string
	if !slices.Equal(s.Payload, other.Payload) {
		out = append(out, "payload")
	}
	if !slices.Equal(s.Metadata, other.Metadata) {
		out = append(out, "metadata")
	}
	if s.Name != other.Name {
		out = append(out, "name")
	}
	if s.Strategy != other.Strategy {
		out = append(out, "strategy")
	}
	if s.Type != other.Type {
		out = append(out, "type")
	}
	if s.Selector != other.Selector {
		out = append(out, "selector")
	}
	if s.Adapter != other.Adapter {
		out = append(out, "adapter")
	}
	return out
}

// Digest returns a stable hex digest of the signature for logs.
func (s Signature) Digest() string {
	h := xxhash.New()
	writeShapes := func(tag string, shapes []schema.FieldShape) {
		fmt.Fprintf(h, "%s[", tag)
		for _, f := range shapes {
			fmt.Fprintf(h, "%q:%q:%t:%t:%q;", f.Name, f.Type, f.Optional, f.HasDefault, f.Default)
		}
		fmt.Fprint(h, "]")
	}
	writeShapes("payload", s.Payload)
	writeShapes("metadata", s.Metadata)
	fmt.Fprintf(h, "%q|%q|%q|%q|%q", s.Name, s.Strategy, s.Type, s.Selector, s.Adapter)
	return fmt.Sprintf("%016x", h.Sum64())
}
