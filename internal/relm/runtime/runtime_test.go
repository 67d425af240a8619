package runtime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/config"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/gateway/memory"
	"github.com/conduit-lang/relm/internal/relm/notifications"
	"github.com/conduit-lang/relm/internal/relm/plugin"
	"github.com/conduit-lang/relm/internal/relm/registry"
	"github.com/conduit-lang/relm/internal/relm/relation"
)

type trackedGateway struct {
	*memory.Gateway
	cfg         gateway.Config
	disconnects int
}

func (g *trackedGateway) Disconnect() error {
	g.disconnects++
	return g.Gateway.Disconnect()
}

// testEnv returns an env whose "memory" adapter records the gateways it builds
func testEnv(t *testing.T) (Env, map[string]*trackedGateway) {
	t.Helper()

	var mu sync.Mutex
	built := make(map[string]*trackedGateway)

	table := gateway.NewAdapters()
	require.NoError(t, table.Register("memory", func(_ context.Context, cfg gateway.Config) (gateway.Gateway, error) {
		gw := &trackedGateway{Gateway: memory.NewGateway(), cfg: cfg}
		gw.CreateDataset("users",
			gateway.Column{Name: "id", Type: "integer", PrimaryKey: true},
			gateway.Column{Name: "name", Type: "string"},
		)
		mu.Lock()
		built[cfg.ID] = gw
		mu.Unlock()
		return gw, nil
	}))

	return Env{Adapters: table}, built
}

func TestNew_NamedGateways(t *testing.T) {
	env, built := testEnv(t)
	ctx := context.Background()

	rt, err := New(env, Named{"default": {"memory"}, "other": {"memory"}})
	require.NoError(t, err)

	reg, err := rt.Finalize(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"gateways.default", "gateways.other"}, reg.Gateways().Keys())

	first, err := reg.Fetch(ctx, registry.Name("gateways"))
	require.NoError(t, err)
	gw, err := first.(*registry.Registry).Fetch(ctx, registry.Name("default"))
	require.NoError(t, err)
	again, err := reg.Gateways().Fetch(ctx, registry.Name("default"))
	require.NoError(t, err)
	assert.Same(t, gw, again)

	require.NoError(t, rt.Disconnect(ctx))
	require.NoError(t, rt.Disconnect(ctx))
	assert.Equal(t, 1, built["default"].disconnects)
	assert.Equal(t, 1, built["other"].disconnects)
}

func TestNew_PositionalOptions(t *testing.T) {
	env, built := testEnv(t)

	rt, err := New(env, Positional("memory", "first", map[string]any{"strict": true}))
	require.NoError(t, err)
	_, err = rt.Finalize(context.Background())
	require.NoError(t, err)

	cfg := built["default"].cfg
	assert.Equal(t, "memory", cfg.Adapter)
	assert.Equal(t, []any{"first"}, cfg.Args)
	assert.Equal(t, map[string]any{"strict": true}, cfg.Options)
	assert.Equal(t, "memory", rt.Config().String("gateways.default.adapter"))
}

func TestNew_AdaptersLoadedOnce(t *testing.T) {
	env, built := testEnv(t)

	rt, err := New(env, Named{
		"default": {"memory"},
		"other":   {"memory"},
		"remote":  {"http", "https://example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rt.Adapters().Loads("memory"))

	_, err = rt.Finalize(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsAdapterLoadError(err))
	assert.Equal(t, 1, built["default"].disconnects)
	assert.Equal(t, 1, built["other"].disconnects)
	assert.Nil(t, rt.Registry())
	assert.Equal(t, 1, rt.Adapters().Loads("memory"), "building gateways does not reload the adapter")

	_, again := rt.Finalize(context.Background())
	assert.Equal(t, err, again)
}

func TestNew_InvalidArgs(t *testing.T) {
	env, _ := testEnv(t)

	_, err := New(env, Named{"default": {}})
	assert.Error(t, err)

	_, err = New(env, Named{"default": {42}})
	assert.Error(t, err)
}

func TestNew_CustomizeTakesPrecedence(t *testing.T) {
	env, built := testEnv(t)

	rt, err := New(env, Positional("memory", "from-args"), func(rt *Runtime) error {
		return rt.Gateway("default", "memory", "from-customize")
	})
	require.NoError(t, err)
	_, err = rt.Finalize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{"from-customize"}, built["default"].cfg.Args)
}

func TestFinalize_Freezes(t *testing.T) {
	env, _ := testEnv(t)
	rt, err := New(env, Positional("memory"))
	require.NoError(t, err)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)

	again, err := rt.Finalize(context.Background())
	require.NoError(t, err)
	assert.Same(t, reg, again)
	assert.Same(t, reg, rt.Registry())
	assert.True(t, rt.Finalized())

	assert.ErrorIs(t, rt.Config().Set("gateways.late.adapter", "memory"), config.ErrFrozen)
	assert.ErrorIs(t, rt.Relation("users", nil), ErrFinalized)
	assert.ErrorIs(t, rt.Use(PluginID("timestamps")), ErrFinalized)
	assert.ErrorIs(t, rt.AutoRegister("dir", true), ErrFinalized)

	_, err = rt.Components().Add(component.Relations, component.Options{ID: "users"})
	assert.ErrorIs(t, err, component.ErrFrozen)
}

func TestRegister_RelationScopedNeedsRelation(t *testing.T) {
	env, _ := testEnv(t)
	rt, err := New(env, Positional("memory"))
	require.NoError(t, err)

	_, err = rt.Register(component.Mappers, component.Options{ID: "entity"})
	assert.ErrorIs(t, err, component.ErrInvalidNamespace)

	_, err = rt.Register(component.Mappers, component.Options{ID: "entity", Namespace: "mappers.users"})
	require.NoError(t, err)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)

	v, err := reg.Mappers().Scoped("users").Fetch(context.Background(), registry.Name("entity"))
	require.NoError(t, err)
	assert.Equal(t, "entity", v.(*relation.Mapper).ID)
}

func TestFinalize_MissingRelation(t *testing.T) {
	env, _ := testEnv(t)
	rt, err := New(env, Positional("memory"))
	require.NoError(t, err)
	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)

	_, err = reg.Relations().Fetch(context.Background(), registry.Name("tasks"))
	assert.ErrorIs(t, err, registry.ErrRelationMissing)
}

func TestSetup_Components(t *testing.T) {
	env, _ := testEnv(t)
	ctx := context.Background()

	rt, err := New(env, Positional("memory"), func(rt *Runtime) error {
		if err := rt.Relation("users", nil); err != nil {
			return err
		}
		if err := rt.Relation("posts", map[string]any{"dataset": "users"}); err != nil {
			return err
		}
		if err := rt.Mapper("users", "names", map[string]any{"only": []string{"name"}}); err != nil {
			return err
		}
		if err := rt.Command("users", "create", map[string]any{"result": "one"}); err != nil {
			return err
		}
		return rt.Association("users", "posts", map[string]any{"kind": relation.OneToMany})
	})
	require.NoError(t, err)

	assert.Error(t, rt.Mapper("", "x", nil))

	reg, err := rt.Finalize(ctx)
	require.NoError(t, err)

	v, err := reg.Commands().Scoped("users").Fetch(ctx, registry.Name("create"))
	require.NoError(t, err)
	create := v.(*relation.Command)

	_, err = create.Call(ctx, relation.Input{Tuples: []map[string]any{{"id": 1, "name": "Jane"}}})
	require.NoError(t, err)

	v, err = reg.Relations().Fetch(ctx, registry.Name("users"))
	require.NoError(t, err)
	users := v.(*relation.Relation)
	rows, err := users.All(ctx)
	require.NoError(t, err)

	m, err := reg.Mappers().Scoped("users").Fetch(ctx, registry.Name("names"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "Jane"}}, m.(*relation.Mapper).Call(rows))

	a, ok := users.Association("posts")
	require.True(t, ok)
	assert.Equal(t, relation.OneToMany, a.Kind)

	v, err = reg.Commands().Scoped("users").Fetch(ctx, registry.Name("posts"))
	require.NoError(t, err)
	assert.Equal(t, "commands.posts", v.(*registry.Registry).Namespace())
}

func TestUse_Recursion(t *testing.T) {
	env, _ := testEnv(t)
	env.Plugins = plugin.NewRegistry()

	var applied []string
	for _, id := range []string{"a", "b", "c", "d"} {
		id := id
		require.NoError(t, env.Plugins.Register(&plugin.Plugin{
			ID:       id,
			Defaults: map[string]any{"level": 1},
			Apply: func(target plugin.Target, opts map[string]any) error {
				applied = append(applied, id)
				return nil
			},
		}))
	}

	rt, err := New(env, Positional("memory"))
	require.NoError(t, err)

	err = rt.Use(PluginList{
		PluginID("a"),
		PluginOptions{"c": {"level": 3}, "b": {"level": 2}},
		IDs("d", "a"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "a"}, applied)
	assert.Equal(t, []string{"a", "b", "c", "d"}, rt.Enabled())
	v, _ := rt.Config().Get("plugins.c.level")
	assert.Equal(t, 3, v)
	v, _ = rt.Config().Get("plugins.d.level")
	assert.Equal(t, 1, v)
	assert.Len(t, rt.Components().Plugins(), 4)

	assert.ErrorIs(t, rt.Use(PluginID("missing")), plugin.ErrPluginNotFound)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)
	p, err := reg.Plugins().Fetch(context.Background(), registry.Name("b"))
	require.NoError(t, err)
	assert.Equal(t, "b", p.(*plugin.Plugin).ID)
}

func TestFinalize_ListenersOfEnabledPluginsOnly(t *testing.T) {
	env, _ := testEnv(t)
	env.Plugins = plugin.NewRegistry()

	var calls []string
	listener := func(name string) notifications.Listener {
		return notifications.Listener{
			Event: notifications.RelationRegistered,
			Fn: func(context.Context, notifications.Event) error {
				calls = append(calls, name)
				return nil
			},
		}
	}
	env.Listeners = []notifications.Listener{listener("global")}
	require.NoError(t, env.Plugins.Register(&plugin.Plugin{ID: "enabled", Listeners: []notifications.Listener{listener("enabled")}}))
	require.NoError(t, env.Plugins.Register(&plugin.Plugin{ID: "idle", Listeners: []notifications.Listener{listener("idle")}}))

	rt, err := New(env, Positional("memory"), func(rt *Runtime) error {
		if err := rt.Use(PluginID("enabled")); err != nil {
			return err
		}
		return rt.Relation("users", nil)
	})
	require.NoError(t, err)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)
	_, err = reg.Relations().Fetch(context.Background(), registry.Name("users"))
	require.NoError(t, err)

	assert.Equal(t, []string{"global", "enabled"}, calls)
	assert.Len(t, rt.Notifications().Listeners(notifications.RelationRegistered), 2)
}

func TestFinalize_PluginAppliesConfiguration(t *testing.T) {
	env, _ := testEnv(t)
	env.Plugins = plugin.NewRegistry()
	require.NoError(t, env.Plugins.Register(&plugin.Plugin{
		ID: "users",
		Apply: func(target plugin.Target, _ map[string]any) error {
			_, err := target.Components().Add(component.Relations, component.Options{ID: "users"})
			return err
		},
	}))

	rt, err := New(env, Positional("memory"))
	require.NoError(t, err)
	require.NoError(t, rt.Use(PluginID("users")))

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)
	assert.True(t, reg.Relations().HasKey("users"))
}

func TestFinalize_AutoRegister(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "relations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "relations", "users.yml"), []byte("gateway: default\n"), 0o644))

	env, _ := testEnv(t)
	rt, err := New(env, Positional("memory"), func(rt *Runtime) error {
		return rt.AutoRegister(root, true)
	})
	require.NoError(t, err)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)

	v, err := reg.Relations().Fetch(context.Background(), registry.Name("users"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, v.(*relation.Relation).Schema.Names())
}

func TestDefaultEnv(t *testing.T) {
	rt, err := New(DefaultEnv(), Positional("memory"))
	require.NoError(t, err)

	reg, err := rt.Finalize(context.Background())
	require.NoError(t, err)

	gw, err := reg.Gateway(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "memory", gw.Adapter())
	assert.Equal(t, []string{"memory", "redis", "sql"}, rt.Adapters().Names())
}
