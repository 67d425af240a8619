package component

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Options describes a component to add to a Store
type Options struct {
	ID string
	// Namespace defaults to the plural type name. Relation-scoped types use
	// "<type>.<relation>".
	Namespace string
	Config    map[string]any
	Constant  any
}

// Store holds all declared components. It is shared by every registry view
// derived from one root and only mutated through the owning runtime.
type Store struct {
	mu     sync.RWMutex
	items  map[Type]map[string]*Component // type -> key -> component
	order  []*Component
	frozen bool
}

// NewStore creates an empty component store
func NewStore() *Store {
	return &Store{
		items: make(map[Type]map[string]*Component),
	}
}

// Add validates and registers a component. A second registration of the same
// (type, key) fails with DuplicateComponentError.
func (s *Store) Add(t Type, opts Options) (*Component, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	cfg := maps.Clone(opts.Config)
	if cfg == nil {
		cfg = make(map[string]any)
	}

	id := opts.ID
	if id == "" {
		if v, ok := cfg["id"].(string); ok {
			id = v
		}
	}
	if id == "" {
		return nil, fmt.Errorf("%w (type %s)", ErrMissingID, t)
	}
	if strings.Contains(id, ".") {
		return nil, fmt.Errorf("component id %q must not contain '.'", id)
	}
	cfg["id"] = id

	ns := opts.Namespace
	if ns == "" {
		ns = string(t)
	}
	if err := checkNamespace(t, ns); err != nil {
		return nil, err
	}

	c := &Component{
		Type:      t,
		ID:        id,
		Namespace: ns,
		Config:    cfg,
		Constant:  opts.Constant,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return nil, fmt.Errorf("%w: cannot add %s", ErrFrozen, c)
	}

	byKey, ok := s.items[t]
	if !ok {
		byKey = make(map[string]*Component)
		s.items[t] = byKey
	}
	if _, exists := byKey[c.Key()]; exists {
		return nil, &DuplicateComponentError{Type: t, Key: c.Key()}
	}

	byKey[c.Key()] = c
	s.order = append(s.order, c)
	return c, nil
}

// checkNamespace requires relation-scoped components to live under
// "<type>.<relation>"
func checkNamespace(t Type, ns string) error {
	if !t.RelationScoped() {
		return nil
	}
	relation, ok := strings.CutPrefix(ns, string(t)+".")
	if !ok || relation == "" || strings.Contains(relation, ".") {
		return fmt.Errorf("%w: %s components need a %s.<relation> namespace, got %q", ErrInvalidNamespace, t.Singular(), t, ns)
	}
	return nil
}

// Get returns a top-level component by type and id. A missing component is
// reported through the bool, not an error, so callers can pick a fallback.
func (s *Store) Get(t Type, id string) (*Component, bool) {
	return s.GetIn(t, string(t), id)
}

// GetIn returns a component by type, namespace and id
func (s *Store) GetIn(t Type, namespace, id string) (*Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[t][namespace+"."+id]
	return c, ok
}

// GetKey returns the component registered under a dotted key
func (s *Store) GetKey(key string) (*Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range CoreTypes {
		if c, ok := s.items[t][key]; ok {
			return c, true
		}
	}
	return nil, false
}

// All returns the components of a type in registration order
func (s *Store) All(t Type) []*Component {
	return s.filter(func(c *Component) bool { return c.Type == t })
}

// Gateways returns all gateway components
func (s *Store) Gateways() []*Component { return s.All(Gateways) }

// Datasets returns all dataset components
func (s *Store) Datasets() []*Component { return s.All(Datasets) }

// Schemas returns all schema components
func (s *Store) Schemas() []*Component { return s.All(Schemas) }

// Relations returns all relation components
func (s *Store) Relations() []*Component { return s.All(Relations) }

// Mappers returns all mapper components
func (s *Store) Mappers() []*Component { return s.All(Mappers) }

// Commands returns all command components
func (s *Store) Commands() []*Component { return s.All(Commands) }

// Plugins returns all plugin components
func (s *Store) Plugins() []*Component { return s.All(Plugins) }

// Associations returns association components declared in namespace
// ("associations.users"). An empty namespace returns all of them.
func (s *Store) Associations(namespace string) []*Component {
	return s.filter(func(c *Component) bool {
		return c.Type == Associations && (namespace == "" || c.Namespace == namespace)
	})
}

// RelationIDs returns the ids of all declared relations
func (s *Store) RelationIDs() []string {
	relations := s.Relations()
	ids := make([]string, len(relations))
	for i, c := range relations {
		ids[i] = c.ID
	}
	return ids
}

// Keys returns the keys of all components in registration order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.order))
	for i, c := range s.order {
		keys[i] = c.Key()
	}
	return keys
}

// Len returns the number of registered components
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Freeze rejects any further Add
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Frozen reports whether the store is frozen
func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

func (s *Store) filter(keep func(*Component) bool) []*Component {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Component
	for _, c := range s.order {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
