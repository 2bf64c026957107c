// Package catalog declares event types in YAML, JSON or TOML files and
// applies them to a ManagerRegistry, optionally reloading on change.
//
// A catalog file lists event definitions:
//
//	events:
//	  - type: user_registered
//	    adapter: sync
//	    default_selector: Process
//	    payload:
//	      - {name: user_id, type: int}
//	      - {name: comment, type: string, default: ""}
//	    metadata:
//	      - {name: timestamp, type: time, optional: true}
//
// An entry may extend an earlier entry of the same file with "extends";
// entries marked "abstract" are bases only and are never registered.
package catalog

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// ErrInvalidCatalog indicates a catalog entry cannot be turned into a definition.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Load reads the catalog at path. The format follows the file extension.
// A nil types table uses schema.DefaultTypes.
func Load(path string, types *schema.Types) ([]*eventcore.Definition, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defs, err := Parse(cfg, types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Parse builds the definitions listed under the "events" key of cfg, in
// file order.
func Parse(cfg config.Config, types *schema.Types) ([]*eventcore.Definition, error) {
	if types == nil {
		types = schema.DefaultTypes
	}

	entries := cfg.Slice("events")
	defs := make([]*eventcore.Definition, 0, len(entries))
	byType := make(map[string]*eventcore.Definition, len(entries))

	for i, entry := range entries {
		typ := entry.String("type", "")
		def, err := parseEntry(entry, types, byType)
		if err != nil {
			return nil, fmt.Errorf("%w: events[%d] %q: %v", ErrInvalidCatalog, i, typ, err)
		}
		if _, dup := byType[def.Type()]; dup {
			return nil, fmt.Errorf("%w: events[%d]: type %q listed twice", ErrInvalidCatalog, i, def.Type())
		}
		byType[def.Type()] = def
		defs = append(defs, def)
	}
	return defs, nil
}

func parseEntry(entry config.Config, types *schema.Types, earlier map[string]*eventcore.Definition) (*eventcore.Definition, error) {
	var opts []eventcore.DefinitionOption

	if base := entry.String("extends", ""); base != "" {
		def, ok := earlier[base]
		if !ok {
			return nil, fmt.Errorf("extends %q, which is not listed earlier", base)
		}
		opts = append(opts, eventcore.Extends(def))
	}
	if name := entry.String("name", ""); name != "" {
		opts = append(opts, eventcore.WithName(name))
	}
	if adapter := entry.String("adapter", ""); adapter != "" {
		opts = append(opts, eventcore.WithAdapter(adapter))
	}
	if selector := entry.String("default_selector", ""); selector != "" {
		opts = append(opts, eventcore.WithSelector(selector))
	}
	if entry.Bool("abstract", false) {
		opts = append(opts, eventcore.Abstract())
	}

	if entry.Has("payload") {
		s, err := parseSchema(entry.Slice("payload"), types)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		opts = append(opts, eventcore.WithPayloadSchema(s))
	}
	if entry.Has("metadata") {
		s, err := parseSchema(entry.Slice("metadata"), types)
		if err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		opts = append(opts, eventcore.WithMetadataSchema(s))
	}

	return eventcore.NewDefinition(entry.String("type", ""), opts...)
}

func parseSchema(fields []config.Config, types *schema.Types) (schema.Schema, error) {
	out := make([]schema.Field, 0, len(fields))
	for _, f := range fields {
		var fopts []schema.FieldOption
		if f.Has("default") {
			fopts = append(fopts, schema.Default(f.Any("default", nil)))
		}
		if f.Bool("optional", false) {
			fopts = append(fopts, schema.Optional())
		}
		out = append(out, schema.Attr(f.String("name", ""), f.String("type", schema.TypeAny), fopts...))
	}
	return schema.NewWithTypes(types, out...)
}
