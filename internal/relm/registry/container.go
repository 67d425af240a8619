package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyRegistered is returned when a container key is registered twice
var ErrAlreadyRegistered = errors.New("key already registered")

// Container maps dotted keys to built objects. Entries are written once and
// never replaced.
type Container struct {
	mu    sync.RWMutex
	items map[string]any
	order []string
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{items: make(map[string]any)}
}

// Register stores v under key
func (c *Container) Register(key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}
	c.items[key] = v
	c.order = append(c.order, key)
	return nil
}

// Get returns the object stored under key
func (c *Container) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Has reports whether key is registered
func (c *Container) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns registered keys in registration order
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of entries
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
