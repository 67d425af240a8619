// Package config is the runtime's nested option tree. It stays mutable
// during setup and is frozen when the runtime finalizes.
//
// Keys are dotted paths and, as with viper, case-insensitive.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrFrozen is returned by mutations after Freeze
var ErrFrozen = errors.New("config is frozen")

type tree struct {
	mu     sync.RWMutex
	v      *viper.Viper
	frozen atomic.Bool
}

// Config is a view over a tree rooted at prefix. Views returned by Sub share
// the same tree, so assignments through a view are visible from the root.
type Config struct {
	t      *tree
	prefix string
}

// New creates an empty config tree
func New() *Config {
	return &Config{t: &tree{v: viper.New()}}
}

// FromMap creates a config tree from nested maps
func FromMap(values map[string]any) (*Config, error) {
	c := New()
	if err := c.Merge(values); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a YAML file and merges it into the tree
func (c *Config) Load(path string) error {
	if c.Frozen() {
		return fmt.Errorf("%w: cannot load %s", ErrFrozen, path)
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.Merge(file.AllSettings())
}

// Merge deep-merges values into the view
func (c *Config) Merge(values map[string]any) error {
	if c.Frozen() {
		return ErrFrozen
	}

	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.merge(c.prefix, values)
	return nil
}

func (c *Config) merge(prefix string, values map[string]any) {
	for k, v := range values {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := toMap(v); ok && len(nested) > 0 {
			c.merge(key, nested)
			continue
		}
		c.t.v.Set(key, v)
	}
}

// Set assigns a value at a dotted key
func (c *Config) Set(key string, value any) error {
	if c.Frozen() {
		return fmt.Errorf("%w: cannot set %s", ErrFrozen, c.key(key))
	}

	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.t.v.Set(c.key(key), value)
	return nil
}

// SetDefault assigns a value only when key is unset
func (c *Config) SetDefault(key string, value any) error {
	if c.Has(key) {
		return nil
	}
	return c.Set(key, value)
}

// Get returns the value at a dotted key. Nested sections are returned as maps.
func (c *Config) Get(key string) (any, bool) {
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()

	full := c.key(key)
	if !c.t.v.IsSet(full) {
		return nil, false
	}
	return c.t.v.Get(full), true
}

// Has reports whether key is set
func (c *Config) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// String returns the value at key as a string
func (c *Config) String(key string) string {
	v, _ := c.Get(key)
	return cast.ToString(v)
}

// Bool returns the value at key as a bool
func (c *Config) Bool(key string) bool {
	v, _ := c.Get(key)
	return cast.ToBool(v)
}

// Strings returns the value at key as a string slice
func (c *Config) Strings(key string) []string {
	v, _ := c.Get(key)
	return cast.ToStringSlice(v)
}

// Sub returns a view rooted at key. The section does not need to exist yet;
// assigning through the view creates it.
func (c *Config) Sub(key string) *Config {
	return &Config{t: c.t, prefix: c.key(key)}
}

// Keys returns the immediate child keys of the view, sorted
func (c *Config) Keys() []string {
	values := c.ToMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each calls fn for every immediate child in key order
func (c *Config) Each(fn func(key string, value any) error) error {
	values := c.ToMap()
	for _, k := range c.Keys() {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// ToMap returns the view's contents as nested maps
func (c *Config) ToMap() map[string]any {
	c.t.mu.RLock()
	defer c.t.mu.RUnlock()

	if c.prefix == "" {
		return c.t.v.AllSettings()
	}
	m, _ := toMap(c.t.v.Get(c.prefix))
	if m == nil {
		m = make(map[string]any)
	}
	return m
}

// Freeze makes the whole tree immutable, including views created earlier
func (c *Config) Freeze() {
	c.t.frozen.Store(true)
}

// Frozen reports whether the tree is frozen
func (c *Config) Frozen() bool {
	return c.t.frozen.Load()
}

// Path returns the dotted prefix of the view
func (c *Config) Path() string {
	return c.prefix
}

func (c *Config) key(k string) string {
	k = strings.ToLower(k)
	if c.prefix == "" {
		return k
	}
	if k == "" {
		return c.prefix
	}
	return c.prefix + "." + k
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		return cast.ToStringMap(m), true
	}
	return nil, false
}
