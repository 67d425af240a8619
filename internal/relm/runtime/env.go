package runtime

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/adapters"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/inferrer"
	"github.com/conduit-lang/relm/internal/relm/notifications"
	"github.com/conduit-lang/relm/internal/relm/plugin"
	"github.com/conduit-lang/relm/internal/relm/registry"
)

// Env carries the collaborators a runtime works with. Nothing is looked up
// globally; every runtime gets its own bus, plugin registry and adapter table
// unless the caller shares them explicitly.
type Env struct {
	Logger    *zap.Logger
	Bus       *notifications.Bus
	Plugins   *plugin.Registry
	Adapters  *gateway.Adapters
	Factories registry.Factories
	Inferrer  *inferrer.Inferrer
	// Listeners are attached at finalize regardless of enabled plugins
	Listeners []notifications.Listener
}

// DefaultEnv returns an env with the built-in adapters and no logging
func DefaultEnv() Env {
	return Env{Adapters: adapters.Default()}
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Bus == nil {
		e.Bus = notifications.NewBus(e.Logger)
	}
	if e.Plugins == nil {
		e.Plugins = plugin.NewRegistry()
	}
	if e.Adapters == nil {
		e.Adapters = adapters.Default()
	}
	if e.Factories == nil {
		e.Factories = registry.DefaultFactories()
	}
	if e.Inferrer == nil {
		e.Inferrer = inferrer.New(inferrer.WithLogger(e.Logger))
	}
	return e
}
