// Package plugin holds configuration plugins. Plugins are registered in an
// explicit Registry that is injected into the runtime.
package plugin

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/config"
	"github.com/conduit-lang/relm/internal/relm/notifications"
)

var (
	// ErrPluginNotFound is returned when fetching an unregistered plugin
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrDuplicatePlugin is returned when a plugin id is registered twice
	ErrDuplicatePlugin = errors.New("plugin already registered")
)

// Target is what a plugin configures when it is enabled
type Target interface {
	Config() *config.Config
	Components() *component.Store
}

// ApplyFunc configures target with the options passed to Use
type ApplyFunc func(target Target, options map[string]any) error

// Plugin is a configuration plugin
type Plugin struct {
	ID string
	// Defaults are merged under the options given to Use
	Defaults map[string]any
	Apply    ApplyFunc
	// Listeners are attached to the bus at finalize, only when the plugin
	// was enabled with Use
	Listeners []notifications.Listener
}

// Options merges opts over the plugin defaults
func (p *Plugin) Options(opts map[string]any) map[string]any {
	out := maps.Clone(p.Defaults)
	if out == nil {
		out = make(map[string]any, len(opts))
	}
	maps.Copy(out, opts)
	return out
}

// Registry maps plugin ids to plugins
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin registry
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds a plugin. Listener sources default to the plugin id.
func (r *Registry) Register(p *Plugin) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("plugin id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.ID)
	}
	for i := range p.Listeners {
		if p.Listeners[i].Source == "" {
			p.Listeners[i].Source = p.ID
		}
	}
	r.plugins[p.ID] = p
	return nil
}

// Fetch returns a registered plugin
func (r *Registry) Fetch(id string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return p, nil
}

// Has reports whether id is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[id]
	return ok
}

// IDs returns registered plugin ids, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
