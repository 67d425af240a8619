// Package registry is the lazy component registry. A Registry is a view over
// shared state (component store, container, resolver, inferrer, event bus)
// scoped by a namespace path and a component type. Objects are built on first
// fetch, cached in the container and never rebuilt.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/config"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/inferrer"
	"github.com/conduit-lang/relm/internal/relm/notifications"
	"github.com/conduit-lang/relm/internal/relm/plugin"
	"github.com/conduit-lang/relm/internal/relm/resolver"
)

// Options holds the shared state of a registry tree. Nil fields get empty
// defaults.
type Options struct {
	Components *component.Store
	Config     *config.Config
	Bus        *notifications.Bus
	Plugins    *plugin.Registry
	Adapters   *gateway.Adapters
	Factories  Factories
	Inferrer   *inferrer.Inferrer
	Logger     *zap.Logger
}

type state struct {
	components *component.Store
	container  *Container
	resolver   *resolver.Resolver
	inferrer   *inferrer.Inferrer
	config     *config.Config
	bus        *notifications.Bus
	plugins    *plugin.Registry
	adapters   *gateway.Adapters
	factories  Factories
	logger     *zap.Logger

	disconnected atomic.Bool
}

// Registry is a scoped view. Views derived from one root share all state.
type Registry struct {
	state     *state
	path      []string
	typ       component.Type
	options   map[string]any
	namespace string

	compilerOnce sync.Once
	compiler     inferrer.Compiler
	compilerErr  error
}

// New creates a root registry
func New(opts Options) *Registry {
	if opts.Components == nil {
		opts.Components = component.NewStore()
	}
	if opts.Config == nil {
		opts.Config = config.New()
	}
	if opts.Plugins == nil {
		opts.Plugins = plugin.NewRegistry()
	}
	if opts.Adapters == nil {
		opts.Adapters = gateway.NewAdapters()
	}
	if opts.Factories == nil {
		opts.Factories = DefaultFactories()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Inferrer == nil {
		opts.Inferrer = inferrer.New(inferrer.WithLogger(opts.Logger))
	}

	return newView(&state{
		components: opts.Components,
		container:  NewContainer(),
		resolver:   resolver.New(opts.Components),
		inferrer:   opts.Inferrer,
		config:     opts.Config,
		bus:        opts.Bus,
		plugins:    opts.Plugins,
		adapters:   opts.Adapters,
		factories:  opts.Factories,
		logger:     opts.Logger,
	}, nil, "", nil)
}

func newView(s *state, path []string, t component.Type, options map[string]any) *Registry {
	return &Registry{
		state:     s,
		path:      path,
		typ:       t,
		options:   options,
		namespace: strings.Join(path, "."),
	}
}

// Scoped returns a view with segments appended to the path
func (r *Registry) Scoped(segments ...string) *Registry {
	return r.ScopedAs(r.typ, segments...)
}

// ScopedAs returns a view with segments appended and the type replaced. On
// the root view with no segments it returns the per-type view of t.
func (r *Registry) ScopedAs(t component.Type, segments ...string) *Registry {
	if len(r.path) == 0 && len(segments) == 0 && t.Valid() {
		segments = []string{string(t)}
	}
	path := make([]string, 0, len(r.path)+len(segments))
	path = append(path, r.path...)
	for _, s := range segments {
		path = append(path, strings.Split(s, ".")...)
	}
	return newView(r.state, path, t, r.options)
}

// WithOptions returns the same view with inference options replaced
func (r *Registry) WithOptions(options map[string]any) *Registry {
	return newView(r.state, r.path, r.typ, maps.Clone(options))
}

// Root returns the unscoped view
func (r *Registry) Root() *Registry {
	return newView(r.state, nil, "", nil)
}

func (r *Registry) typed(t component.Type) *Registry {
	return newView(r.state, []string{string(t)}, t, nil)
}

// Per-type views are rooted at the type namespace regardless of the
// receiver's path.

func (r *Registry) Gateways() *Registry { return r.typed(component.Gateways) }
func (r *Registry) Datasets() *Registry { return r.typed(component.Datasets) }
func (r *Registry) Schemas() *Registry { return r.typed(component.Schemas) }
func (r *Registry) Relations() *Registry { return r.typed(component.Relations) }
func (r *Registry) Mappers() *Registry { return r.typed(component.Mappers) }
func (r *Registry) Commands() *Registry { return r.typed(component.Commands) }
func (r *Registry) Associations() *Registry { return r.typed(component.Associations) }
func (r *Registry) Plugins() *Registry { return r.typed(component.Plugins) }

// Type predicates

func (r *Registry) IsGateways() bool { return r.typ == component.Gateways }
func (r *Registry) IsDatasets() bool { return r.typ == component.Datasets }
func (r *Registry) IsSchemas() bool { return r.typ == component.Schemas }
func (r *Registry) IsRelations() bool { return r.typ == component.Relations }
func (r *Registry) IsMappers() bool { return r.typ == component.Mappers }
func (r *Registry) IsCommands() bool { return r.typ == component.Commands }
func (r *Registry) IsAssociations() bool { return r.typ == component.Associations }
func (r *Registry) IsPlugins() bool { return r.typ == component.Plugins }

// Type returns the component type of the view; empty at the root
func (r *Registry) Type() component.Type { return r.typ }

// Namespace returns the dotted path of the view
func (r *Registry) Namespace() string { return r.namespace }

// Path returns a copy of the namespace segments
func (r *Registry) Path() []string { return slices.Clone(r.path) }

// Components returns the shared component store
func (r *Registry) Components() *component.Store { return r.state.components }

// Container returns the shared container of built objects
func (r *Registry) Container() *Container { return r.state.container }

// Config returns the shared config tree
func (r *Registry) Config() *config.Config { return r.state.config }

// Notifications returns the event bus, possibly nil
func (r *Registry) Notifications() *notifications.Bus { return r.state.bus }

// PluginRegistry returns the plugin registry
func (r *Registry) PluginRegistry() *plugin.Registry { return r.state.plugins }

// Inferrer returns the shared inferrer
func (r *Registry) Inferrer() *inferrer.Inferrer { return r.state.inferrer }

// Logger returns the registry logger
func (r *Registry) Logger() *zap.Logger { return r.state.logger }

// Compiler returns the inference compiler for the view's type and options,
// computed once per view
func (r *Registry) Compiler() (inferrer.Compiler, error) {
	r.compilerOnce.Do(func() {
		r.compiler, r.compilerErr = r.state.inferrer.Compiler(r.typ, r.options)
	})
	return r.compiler, r.compilerErr
}

// Get converts v with KeyOf and fetches it
func (r *Registry) Get(ctx context.Context, v any) (any, error) {
	key, err := KeyOf(v)
	if err != nil {
		return nil, &MissingElementError{Type: r.typ, Key: fmt.Sprint(v), Err: err}
	}
	return r.Fetch(ctx, key)
}

// Fetch resolves key, building and caching the object on first access.
// Internal lookup failures surface as *MissingElementError.
func (r *Registry) Fetch(ctx context.Context, key Key) (any, error) {
	v, err := r.fetch(ctx, key)
	if err == nil {
		return v, nil
	}

	var missing *MissingElementError
	if errors.As(err, &missing) {
		return nil, err
	}
	if errors.Is(err, errNotFound) || errors.Is(err, resolver.ErrUnresolvable) {
		return nil, &MissingElementError{Type: r.missingType(key), Key: key.String(), Err: err}
	}
	return nil, err
}

func (r *Registry) fetch(ctx context.Context, key Key) (any, error) {
	switch k := key.(type) {
	case Name:
		name := string(k)
		if r.tailMatches(name) && r.allowsTailLookup() {
			return r.fetch(ctx, Path(r.namespace))
		}
		if r.scopesRelations() && r.isRelation(name) && !r.state.resolver.Has(r.key(name)) {
			return r.Scoped(name), nil
		}
		return r.fetch(ctx, Path(r.key(name)))
	case Path:
		return r.fetchPath(ctx, string(k))
	case Query:
		return r.state.inferrer.Infer(ctx, r, inferrer.Query(k), r.typ, r.options)
	case nil:
		return nil, fmt.Errorf("%w: nil key", errNotFound)
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidKey, key)
}

func (r *Registry) fetchPath(ctx context.Context, key string) (any, error) {
	if v, ok := r.state.container.Get(key); ok {
		return v, nil
	}
	if key == r.namespace && key != "" {
		return r, nil
	}
	if view, ok := r.namespaceView(key); ok {
		return view, nil
	}
	if target, ok := r.associationTarget(key); ok {
		r.state.logger.Debug("redirecting association",
			zap.String("key", key),
			zap.String("target", target.Namespace()),
		)
		return target, nil
	}
	if alias, ok := r.associationAlias(key); ok {
		return r.fetch(ctx, Path(alias))
	}
	return r.resolve(ctx, key)
}

// namespaceView returns the per-type view for "relations" and the
// relation-scoped view for "mappers.users"
func (r *Registry) namespaceView(key string) (*Registry, bool) {
	parts := strings.Split(key, ".")
	t := component.Type(parts[0])
	if !t.Valid() {
		return nil, false
	}
	switch {
	case len(parts) == 1:
		return r.typed(t), true
	case len(parts) == 2 && t.RelationScoped():
		return r.typed(t).Scoped(parts[1]), true
	}
	return nil, false
}

// associationTarget redirects "<commands|mappers>.<source>.<assoc>" to the
// view of the association's target relation
func (r *Registry) associationTarget(key string) (*Registry, bool) {
	t, source, name, ok := r.undeclaredChild(key)
	if !ok || (t != component.Commands && t != component.Mappers) {
		return nil, false
	}
	for _, a := range r.state.components.Associations(string(component.Associations) + "." + source) {
		declared := a.StringOption("name", a.ID)
		if a.ID == name || declared == name {
			target := a.StringOption("target", declared)
			return r.typed(t).Scoped(target), true
		}
	}
	return nil, false
}

// associationAlias maps "associations.<source>.<name>" to the key of the
// association declared with that name under another alias
func (r *Registry) associationAlias(key string) (string, bool) {
	t, source, name, ok := r.undeclaredChild(key)
	if !ok || t != component.Associations {
		return "", false
	}
	for _, a := range r.state.components.Associations(string(component.Associations) + "." + source) {
		if a.ID != name && a.StringOption("name", a.ID) == name {
			r.state.logger.Debug("resolving association alias",
				zap.String("relation", source),
				zap.String("name", name),
				zap.String("alias", a.ID),
			)
			return a.Key(), true
		}
	}
	return "", false
}

// undeclaredChild splits "<type>.<relation>.<name>" keys that are neither
// declared nor resolved. Typed views only accept keys of their own type.
func (r *Registry) undeclaredChild(key string) (t component.Type, source, name string, ok bool) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || r.state.resolver.Has(key) {
		return "", "", "", false
	}
	t = component.Type(parts[0])
	if r.typ != "" && r.typ != t {
		return "", "", "", false
	}
	return t, parts[1], parts[2], true
}

// resolve builds a declared component through the resolver and caches it
func (r *Registry) resolve(ctx context.Context, key string) (any, error) {
	c, ok := r.state.components.GetKey(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, key)
	}
	return r.build(ctx, c)
}

func (r *Registry) build(ctx context.Context, c *component.Component) (any, error) {
	factory, ok := r.state.factories[c.Type]
	if !ok {
		return nil, fmt.Errorf("no builder for %s", c.Type)
	}

	root := r.Root()
	v, err := r.state.resolver.Call(ctx, c.Key(), func(ctx context.Context) (any, error) {
		r.state.logger.Debug("building component", zap.String("key", c.Key()))
		return factory(ctx, c, root)
	})
	if err != nil {
		return nil, err
	}

	if err := r.state.container.Register(c.Key(), v); err != nil {
		if existing, ok := r.state.container.Get(c.Key()); ok {
			return existing, nil
		}
		return nil, err
	}
	c.MarkBuilt()
	return v, nil
}

// Infer fetches id, building it from cfg as an unregistered component of the
// view's type when it was never declared
func (r *Registry) Infer(ctx context.Context, id string, cfg map[string]any) (any, error) {
	key := r.key(id)
	if v, ok := r.state.container.Get(key); ok {
		return v, nil
	}
	if _, ok := r.state.components.GetKey(key); ok {
		return r.Fetch(ctx, Path(key))
	}
	if !r.typ.Valid() {
		return nil, fmt.Errorf("cannot infer %q outside a typed registry", id)
	}

	conf := maps.Clone(cfg)
	if conf == nil {
		conf = make(map[string]any)
	}
	conf["id"] = id
	return r.build(ctx, &component.Component{
		Type:      r.typ,
		ID:        id,
		Namespace: r.namespace,
		Config:    conf,
	})
}

// Gateway returns a built gateway by id
func (r *Registry) Gateway(ctx context.Context, id string) (gateway.Gateway, error) {
	v, err := r.Gateways().Fetch(ctx, Name(id))
	if err != nil {
		return nil, err
	}
	gw, ok := v.(gateway.Gateway)
	if !ok {
		return nil, fmt.Errorf("gateway %s has unexpected type %T", id, v)
	}
	return gw, nil
}

// Keys returns the declared and resolved keys under the view's namespace
func (r *Registry) Keys() []string {
	all := r.state.resolver.Keys()
	if r.namespace == "" {
		return all
	}

	prefix := r.namespace + "."
	out := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// IDs returns the last segment of each key
func (r *Registry) IDs() []string {
	keys := r.Keys()
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k[strings.LastIndex(k, ".")+1:]
	}
	return ids
}

// HasKey reports whether name is known in this view
func (r *Registry) HasKey(name string) bool {
	return slices.Contains(r.Keys(), r.key(name))
}

// Empty reports whether the view has no keys
func (r *Registry) Empty() bool {
	return len(r.Keys()) == 0
}

// Each fetches every key of the view in key order. id is the key relative to
// the view's namespace, so the mappers view yields "users.entity".
func (r *Registry) Each(ctx context.Context, fn func(id string, v any) error) error {
	prefix := ""
	if r.namespace != "" {
		prefix = r.namespace + "."
	}
	for _, key := range r.Keys() {
		id := strings.TrimPrefix(key, prefix)
		v, err := r.Fetch(ctx, Path(key))
		if err != nil {
			return err
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

// Trigger publishes an event on the shared bus
func (r *Registry) Trigger(ctx context.Context, event string, payload map[string]any) error {
	return r.state.bus.Trigger(ctx, event, payload)
}

// Disconnect disconnects every built gateway exactly once. It is terminal.
func (r *Registry) Disconnect(_ context.Context) error {
	if !r.state.disconnected.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, key := range r.state.container.Keys() {
		if !strings.HasPrefix(key, string(component.Gateways)+".") {
			continue
		}
		v, _ := r.state.container.Get(key)
		gw, ok := v.(gateway.Gateway)
		if !ok {
			continue
		}
		r.state.logger.Debug("disconnecting gateway", zap.String("key", key))
		if err := gw.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Disconnected reports whether Disconnect was called
func (r *Registry) Disconnected() bool {
	return r.state.disconnected.Load()
}

func (r *Registry) String() string {
	typ := string(r.typ)
	if typ == "" {
		typ = "root"
	}

	var adapters []string
	for _, key := range r.state.container.Keys() {
		v, _ := r.state.container.Get(key)
		if gw, ok := v.(gateway.Gateway); ok && !slices.Contains(adapters, gw.Adapter()) {
			adapters = append(adapters, gw.Adapter())
		}
	}
	return fmt.Sprintf("registry(%s) namespace=%q adapters=[%s] keys=[%s]",
		typ, r.namespace, strings.Join(adapters, " "), strings.Join(r.Keys(), " "))
}

func (r *Registry) key(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "." + name
}

// tailMatches reports whether name is the last segment of the view's path
func (r *Registry) tailMatches(name string) bool {
	return len(r.path) > 0 && r.path[len(r.path)-1] == name
}

// allowsTailLookup reports whether a name equal to the path tail refers to
// the view itself. Mapper ids commonly repeat the relation name
// ("mappers.users.users"), so mapper views never self-reference.
func (r *Registry) allowsTailLookup() bool {
	return r.typ != component.Mappers
}

// scopesRelations reports whether names may select a relation sub-scope
func (r *Registry) scopesRelations() bool {
	return (r.typ == component.Mappers || r.typ == component.Commands) && len(r.path) == 1
}

func (r *Registry) isRelation(name string) bool {
	if _, ok := r.state.components.Get(component.Relations, name); ok {
		return true
	}
	return r.state.container.Has(string(component.Relations) + "." + name)
}

func (r *Registry) missingType(key Key) component.Type {
	if r.typ != "" {
		return r.typ
	}
	if p, ok := key.(Path); ok {
		if t := component.Type(strings.Split(string(p), ".")[0]); t.Valid() {
			return t
		}
	}
	return ""
}
