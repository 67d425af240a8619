// Package runtime sets up and finalizes a relm configuration: it merges
// gateway settings, loads adapters, applies plugins, registers components
// and, on finalize, freezes everything and hands out the root registry.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/config"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/loader"
	"github.com/conduit-lang/relm/internal/relm/notifications"
	"github.com/conduit-lang/relm/internal/relm/plugin"
	"github.com/conduit-lang/relm/internal/relm/registry"
)

// ErrFinalized is returned by setup methods after Finalize
var ErrFinalized = errors.New("runtime is finalized")

// Runtime owns the configuration of one registry tree
type Runtime struct {
	env        Env
	logger     *zap.Logger
	config     *config.Config
	components *component.Store

	mu       sync.Mutex
	enabled  []string
	registry *registry.Registry

	finalizeMu  sync.Mutex
	finalized   bool
	finalizeErr error
}

// New builds a runtime. Customize callbacks run after adapters are loaded
// and before gateway components are registered, so gateways they declare
// take precedence over args.
func New(env Env, args GatewayArgs, customize ...func(*Runtime) error) (*Runtime, error) {
	env = env.withDefaults()
	rt := &Runtime{
		env:        env,
		logger:     env.Logger.Named("runtime"),
		config:     config.New(),
		components: component.NewStore(),
	}

	if err := rt.setDefaults(); err != nil {
		return nil, err
	}
	env.Bus.RegisterEvent(notifications.ConfigurationEvents...)

	if args != nil {
		specs, err := args.gatewaySpecs()
		if err != nil {
			return nil, fmt.Errorf("invalid gateway arguments: %w", err)
		}
		for _, id := range sortedIDs(specs) {
			if err := rt.configureGateway(id, specs[id]); err != nil {
				return nil, err
			}
		}
	}

	rt.loadAdapters()

	for _, fn := range customize {
		if err := fn(rt); err != nil {
			return nil, err
		}
	}

	if err := rt.registerGateways(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) setDefaults() error {
	defaults := map[string]any{
		"auto_register.namespace":      true,
		"auto_register.root_directory": "",
	}
	for _, key := range sortedIDs(defaults) {
		if err := rt.config.SetDefault(key, defaults[key]); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) configureGateway(id string, spec GatewaySpec) error {
	values := map[string]any{"adapter": spec.Adapter}
	if len(spec.Args) > 0 {
		values["args"] = spec.Args
	}
	if len(spec.Options) > 0 {
		values["options"] = maps.Clone(spec.Options)
	}
	return rt.config.Sub("gateways").Sub(id).Merge(values)
}

// loadAdapters loads every distinct configured adapter once. Unknown
// adapters are left for the gateway builder to report.
func (rt *Runtime) loadAdapters() {
	gateways := rt.config.Sub("gateways")

	var names []string
	for _, id := range gateways.Keys() {
		name := gateways.Sub(id).String("adapter")
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		if _, err := rt.env.Adapters.Load(name); err != nil {
			rt.logger.Debug("adapter not preloaded", zap.String("adapter", name), zap.Error(err))
		}
	}
}

func (rt *Runtime) registerGateways() error {
	gateways := rt.config.Sub("gateways")
	for _, id := range gateways.Keys() {
		if _, declared := rt.components.Get(component.Gateways, id); declared {
			continue
		}

		gw := gateways.Sub(id)
		cfg := map[string]any{"adapter": gw.String("adapter")}
		if args, ok := gw.Get("args"); ok {
			cfg["args"] = toSlice(args)
		}
		if gw.Has("options") {
			cfg["options"] = gw.Sub("options").ToMap()
		}
		if _, err := rt.components.Add(component.Gateways, component.Options{ID: id, Config: cfg}); err != nil {
			return err
		}
	}
	return nil
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

// Config returns the runtime's config tree
func (rt *Runtime) Config() *config.Config { return rt.config }

// Components returns the component store
func (rt *Runtime) Components() *component.Store { return rt.components }

// Notifications returns the event bus
func (rt *Runtime) Notifications() *notifications.Bus { return rt.env.Bus }

// Plugins returns the plugin registry
func (rt *Runtime) Plugins() *plugin.Registry { return rt.env.Plugins }

// Adapters returns the adapter table
func (rt *Runtime) Adapters() *gateway.Adapters { return rt.env.Adapters }

// Logger returns the runtime logger
func (rt *Runtime) Logger() *zap.Logger { return rt.logger }

// Registry returns the root registry, or nil before Finalize
func (rt *Runtime) Registry() *registry.Registry {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.registry
}

// Enabled returns the ids of plugins enabled with Use, in order
func (rt *Runtime) Enabled() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.enabled)
}

// Finalized reports whether Finalize was called
func (rt *Runtime) Finalized() bool {
	return rt.config.Frozen()
}

// Finalize freezes the configuration, attaches listeners of enabled plugins,
// runs the auto-registration loader, freezes the component store, connects
// every declared gateway and returns the root registry. Later calls return
// the same result.
func (rt *Runtime) Finalize(ctx context.Context) (*registry.Registry, error) {
	rt.finalizeMu.Lock()
	defer rt.finalizeMu.Unlock()

	if rt.finalized {
		return rt.Registry(), rt.finalizeErr
	}
	rt.finalized = true

	reg, err := rt.finalize(ctx)
	if err != nil {
		rt.finalizeErr = err
		return nil, err
	}

	rt.mu.Lock()
	rt.registry = reg
	rt.mu.Unlock()
	return reg, nil
}

func (rt *Runtime) finalize(ctx context.Context) (*registry.Registry, error) {
	rt.config.Freeze()

	if err := rt.attachListeners(); err != nil {
		return nil, err
	}

	if dir := rt.config.String("auto_register.root_directory"); dir != "" {
		n, err := loader.Load(ctx, rt.components, dir, loader.Options{
			Namespace: rt.config.Bool("auto_register.namespace"),
			Logger:    rt.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("auto-registration failed: %w", err)
		}
		rt.logger.Debug("auto-registered components", zap.String("root", dir), zap.Int("count", n))
	}

	rt.components.Freeze()

	reg := registry.New(registry.Options{
		Components: rt.components,
		Config:     rt.config,
		Bus:        rt.env.Bus,
		Plugins:    rt.env.Plugins,
		Adapters:   rt.env.Adapters,
		Factories:  rt.env.Factories,
		Inferrer:   rt.env.Inferrer,
		Logger:     rt.env.Logger,
	})

	for _, c := range rt.components.Gateways() {
		if _, err := reg.Gateway(ctx, c.ID); err != nil {
			if derr := reg.Disconnect(ctx); derr != nil {
				rt.logger.Warn("failed to disconnect gateways", zap.Error(derr))
			}
			return nil, err
		}
	}

	rt.logger.Debug("runtime finalized",
		zap.Int("components", rt.components.Len()),
		zap.Strings("plugins", rt.Enabled()),
	)
	return reg, nil
}

// attachListeners subscribes global listeners and those of enabled plugins
func (rt *Runtime) attachListeners() error {
	listeners := slices.Clone(rt.env.Listeners)
	for _, id := range rt.Enabled() {
		p, err := rt.env.Plugins.Fetch(id)
		if err != nil {
			return err
		}
		listeners = append(listeners, p.Listeners...)
	}

	for _, l := range listeners {
		if err := rt.env.Bus.Subscribe(l); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect disconnects the registry's gateways
func (rt *Runtime) Disconnect(ctx context.Context) error {
	reg := rt.Registry()
	if reg == nil {
		return nil
	}
	return reg.Disconnect(ctx)
}
