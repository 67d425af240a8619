// Package schema defines the typed attribute sets bound to relations.
// Schemas are either declared as schema components or inferred from a
// gateway's dataset columns.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

var (
	// ErrDuplicateAttribute is returned when two attributes share a name
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrUnknownAttribute is returned when projecting a missing attribute
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Attribute is one typed attribute of a schema
type Attribute struct {
	Name       string
	Type       string
	PrimaryKey bool
	Nullable   bool
	// Alias is the output name when the attribute is wrapped or renamed
	Alias string
}

// Key returns the output name of the attribute
func (a Attribute) Key() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Name
}

// Wrapped returns a copy aliased as "<prefix>_<name>"
func (a Attribute) Wrapped(prefix string) Attribute {
	a.Alias = prefix + "_" + a.Name
	return a
}

// AST returns the attribute in its portable list form:
// ["attribute", [name, type, meta]]
func (a Attribute) AST() []any {
	meta := map[string]any{}
	if a.PrimaryKey {
		meta["primary_key"] = true
	}
	if a.Nullable {
		meta["nullable"] = true
	}
	if a.Alias != "" {
		meta["alias"] = a.Alias
	}
	return []any{"attribute", []any{a.Name, a.Type, meta}}
}

// Schema is an ordered set of attributes
type Schema struct {
	Name       string
	Dataset    string
	Attributes []Attribute
	// Inferred is set when the schema came from dataset introspection
	Inferred bool
}

// New builds a schema, rejecting duplicate attribute names
func New(name string, attrs ...Attribute) (*Schema, error) {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateAttribute, name, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return &Schema{Name: name, Dataset: name, Attributes: attrs}, nil
}

// FromColumns builds an inferred schema from introspected columns
func FromColumns(dataset string, columns []gateway.Column) (*Schema, error) {
	attrs := make([]Attribute, len(columns))
	for i, c := range columns {
		attrs[i] = Attribute{
			Name:       c.Name,
			Type:       c.Type,
			PrimaryKey: c.PrimaryKey,
			Nullable:   c.Nullable,
		}
	}
	s, err := New(dataset, attrs...)
	if err != nil {
		return nil, err
	}
	s.Inferred = true
	return s, nil
}

// FromConfig builds a schema from a component config. "attributes" is either
// a list of {name, type, primary_key, nullable} maps or a name -> type map;
// "dataset" overrides the dataset name.
func FromConfig(name string, cfg map[string]any) (*Schema, error) {
	var attrs []Attribute

	switch v := cfg["attributes"].(type) {
	case nil:
	case []any:
		for _, item := range v {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, fmt.Errorf("invalid attribute in schema %s: %w", name, err)
			}
			attr := Attribute{
				Name:       cast.ToString(m["name"]),
				Type:       cast.ToString(m["type"]),
				PrimaryKey: cast.ToBool(m["primary_key"]),
				Nullable:   cast.ToBool(m["nullable"]),
				Alias:      cast.ToString(m["alias"]),
			}
			if attr.Name == "" {
				return nil, fmt.Errorf("attribute without name in schema %s", name)
			}
			attrs = append(attrs, attr)
		}
	case []Attribute:
		attrs = append(attrs, v...)
	default:
		m, err := cast.ToStringMapStringE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid attributes in schema %s: %w", name, err)
		}
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			attrs = append(attrs, Attribute{Name: n, Type: m[n], PrimaryKey: n == "id"})
		}
	}

	s, err := New(name, attrs...)
	if err != nil {
		return nil, err
	}
	if ds := cast.ToString(cfg["dataset"]); ds != "" {
		s.Dataset = ds
	}
	return s, nil
}

// Attribute returns the attribute with the given name
func (s *Schema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// PrimaryKey returns the names of primary key attributes
func (s *Schema) PrimaryKey() []string {
	var out []string
	for _, a := range s.Attributes {
		if a.PrimaryKey {
			out = append(out, a.Name)
		}
	}
	return out
}

// Names returns attribute names in order
func (s *Schema) Names() []string {
	out := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		out[i] = a.Name
	}
	return out
}

// Project returns a schema with only the named attributes, in the given order
func (s *Schema) Project(names ...string) (*Schema, error) {
	attrs := make([]Attribute, 0, len(names))
	for _, n := range names {
		a, ok := s.Attribute(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, s.Name, n)
		}
		attrs = append(attrs, a)
	}
	return &Schema{Name: s.Name, Dataset: s.Dataset, Attributes: attrs, Inferred: s.Inferred}, nil
}

// Wrapped returns a copy with every attribute aliased under prefix
func (s *Schema) Wrapped(prefix string) *Schema {
	attrs := make([]Attribute, len(s.Attributes))
	for i, a := range s.Attributes {
		attrs[i] = a.Wrapped(prefix)
	}
	return &Schema{Name: s.Name, Dataset: s.Dataset, Attributes: attrs, Inferred: s.Inferred}
}

// AST returns the schema in list form: ["schema", [name, [attribute...]]]
func (s *Schema) AST() []any {
	attrs := make([]any, len(s.Attributes))
	for i, a := range s.Attributes {
		attrs[i] = a.AST()
	}
	return []any{"schema", []any{s.Name, attrs}}
}
