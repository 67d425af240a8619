package runtime

import (
	"fmt"
	"slices"

	"github.com/conduit-lang/relm/internal/relm/component"
)

// PluginSpec selects plugins for Use: PluginID, PluginList or PluginOptions
type PluginSpec interface {
	pluginSpec()
}

// PluginID enables one plugin with its default options
type PluginID string

// PluginList enables each element in order
type PluginList []PluginSpec

// PluginOptions enables each plugin with the given options, in id order
type PluginOptions map[string]map[string]any

func (PluginID) pluginSpec() {}
func (PluginList) pluginSpec() {}
func (PluginOptions) pluginSpec() {}

// IDs is shorthand for a PluginList of ids
func IDs(ids ...string) PluginList {
	out := make(PluginList, len(ids))
	for i, id := range ids {
		out[i] = PluginID(id)
	}
	return out
}

// Use enables configuration plugins. Listeners of enabled plugins are
// attached at finalize.
func (rt *Runtime) Use(spec PluginSpec) error {
	if err := rt.checkOpen(); err != nil {
		return err
	}

	switch s := spec.(type) {
	case PluginID:
		return rt.enable(string(s), nil)
	case PluginList:
		for _, e := range s {
			if err := rt.Use(e); err != nil {
				return err
			}
		}
		return nil
	case PluginOptions:
		for _, id := range sortedIDs(s) {
			if err := rt.enable(id, s[id]); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return nil
	}
	return fmt.Errorf("unsupported plugin spec %T", spec)
}

func (rt *Runtime) enable(id string, opts map[string]any) error {
	p, err := rt.env.Plugins.Fetch(id)
	if err != nil {
		return err
	}

	options := p.Options(opts)
	if p.Apply != nil {
		if err := p.Apply(rt, options); err != nil {
			return fmt.Errorf("plugin %s: %w", id, err)
		}
	}
	if err := rt.config.Sub("plugins").Sub(id).Merge(options); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if slices.Contains(rt.enabled, id) {
		return nil
	}
	rt.enabled = append(rt.enabled, id)
	_, err = rt.components.Add(component.Plugins, component.Options{ID: id, Config: options})
	return err
}
