package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Adapters is the registration table mapping adapter names to gateway
// factories. It is populated at startup and passed explicitly to the runtime.
type Adapters struct {
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    map[string]int
}

// NewAdapters creates an empty adapter table
func NewAdapters() *Adapters {
	return &Adapters{
		factories: make(map[string]Factory),
		loaded:    make(map[string]int),
	}
}

// Register adds an adapter factory
func (a *Adapters) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("adapter name and factory are required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.factories[name]; exists {
		return fmt.Errorf("adapter %s is already registered", name)
	}
	a.factories[name] = factory
	return nil
}

// Load returns the factory for an adapter and records the load. It is
// called once per distinct adapter at startup; gateway builds use Lookup.
// Unknown adapters return an *AdapterLoadError.
func (a *Adapters) Load(name string) (Factory, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, ok := a.factories[name]
	if !ok {
		return nil, &AdapterLoadError{Adapter: name}
	}
	a.loaded[name]++
	return f, nil
}

// Lookup returns the factory for an adapter without recording a load
func (a *Adapters) Lookup(name string) (Factory, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	f, ok := a.factories[name]
	if !ok {
		return nil, &AdapterLoadError{Adapter: name}
	}
	return f, nil
}

// Loads returns how many times an adapter was loaded
func (a *Adapters) Loads(name string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded[name]
}

// Names returns registered adapter names, sorted
func (a *Adapters) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.factories))
	for name := range a.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
