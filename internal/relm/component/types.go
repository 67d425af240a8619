// Package component holds the declarative component definitions (gateways,
// datasets, schemas, relations, mappers, commands, plugins, associations)
// registered during configuration, before they are built into live objects.
package component

import (
	"fmt"
	"maps"
	"strings"
	"sync/atomic"

	"github.com/conduit-lang/relm/internal/util/inflector"
)

// Type is a component type tag. Values are the plural namespace names.
type Type string

const (
	Gateways     Type = "gateways"
	Datasets     Type = "datasets"
	Schemas      Type = "schemas"
	Relations    Type = "relations"
	Mappers      Type = "mappers"
	Commands     Type = "commands"
	Plugins      Type = "plugins"
	Associations Type = "associations"
)

// CoreTypes lists every component type in registration order
var CoreTypes = []Type{Gateways, Datasets, Schemas, Relations, Mappers, Commands, Plugins, Associations}

func (t Type) String() string {
	return string(t)
}

// Singular returns the singular form used for config keys ("relations" -> "relation")
func (t Type) Singular() string {
	return inflector.Singularize(string(t))
}

// Valid reports whether t is one of the core types
func (t Type) Valid() bool {
	for _, ct := range CoreTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// RelationScoped reports whether components of this type live under a
// relation namespace ("mappers.users", "commands.users", "associations.users")
func (t Type) RelationScoped() bool {
	return t == Mappers || t == Commands || t == Associations
}

// ParseType accepts singular or plural type names
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	if p := Type(inflector.Pluralize(string(t))); p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Component is a declarative registration of a gateway, dataset, schema,
// relation, mapper, command, plugin or association.
type Component struct {
	Type      Type
	ID        string
	Namespace string
	Config    map[string]any
	// Constant is an optional Go value supplied at registration (a prebuilt
	// object or a constructor) that builders may use instead of Config.
	Constant any

	built atomic.Bool
}

// Key returns the dotted key under which the built object is resolved
func (c *Component) Key() string {
	return c.Namespace + "." + c.ID
}

// Option returns a config value
func (c *Component) Option(name string) (any, bool) {
	v, ok := c.Config[name]
	return v, ok
}

// StringOption returns a string config value or def when missing or empty
func (c *Component) StringOption(name, def string) string {
	if v, ok := c.Config[name].(string); ok && v != "" {
		return v
	}
	return def
}

// BoolOption returns a bool config value or false
func (c *Component) BoolOption(name string) bool {
	v, _ := c.Config[name].(bool)
	return v
}

// Parent returns the relation a relation-scoped component belongs to
// ("mappers.users" -> "users"). Empty for top-level components.
func (c *Component) Parent() string {
	prefix := string(c.Type) + "."
	if strings.HasPrefix(c.Namespace, prefix) {
		return strings.TrimPrefix(c.Namespace, prefix)
	}
	return ""
}

// MarkBuilt flags the component as built. It is the only mutation allowed
// once a component is registered.
func (c *Component) MarkBuilt() {
	c.built.Store(true)
}

// Built reports whether the component was built
func (c *Component) Built() bool {
	return c.built.Load()
}

// Clone returns an unregistered copy with an independent config map
func (c *Component) Clone() *Component {
	return &Component{
		Type:      c.Type,
		ID:        c.ID,
		Namespace: c.Namespace,
		Config:    maps.Clone(c.Config),
		Constant:  c.Constant,
	}
}

func (c *Component) String() string {
	return fmt.Sprintf("%s(%s)", c.Type.Singular(), c.Key())
}
