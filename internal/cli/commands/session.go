package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/cli/config"
	"github.com/conduit-lang/relm/internal/relm/cache"
	"github.com/conduit-lang/relm/internal/relm/inferrer"
	"github.com/conduit-lang/relm/internal/relm/registry"
	"github.com/conduit-lang/relm/internal/relm/runtime"
)

// session is a loaded project: its file config, finalized runtime and the
// inference cache backing it
type session struct {
	cfg      *config.Config
	runtime  *runtime.Runtime
	registry *registry.Registry
	cache    cache.Cache
	logger   *zap.Logger
}

// openSession loads relm.yml, configures a runtime from it and finalizes it
func openSession(ctx context.Context, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := opts.logger()
	s := &session{cfg: cfg, logger: logger}

	s.cache, err = newCache(ctx, cfg.InferenceCache)
	if err != nil {
		return nil, err
	}

	inferOpts := []inferrer.Option{inferrer.WithLogger(logger)}
	if s.cache != nil {
		inferOpts = append(inferOpts, inferrer.WithCache(s.cache, cfg.InferenceCache.TTL))
	}

	env := runtime.DefaultEnv()
	env.Logger = logger
	env.Inferrer = inferrer.New(inferOpts...)

	specs := make(runtime.Specs, len(cfg.Gateways))
	for id, gw := range cfg.Gateways {
		specs[id] = runtime.GatewaySpec{Adapter: gw.Adapter, Args: gw.Args, Options: gw.Options}
	}

	s.runtime, err = runtime.New(env, specs, func(rt *runtime.Runtime) error {
		if cfg.AutoRegister.RootDirectory == "" {
			return nil
		}
		return rt.AutoRegister(cfg.AutoRegister.RootDirectory, cfg.AutoRegister.Namespace)
	})
	if err != nil {
		s.closeCache()
		return nil, err
	}

	if len(cfg.Plugins) > 0 {
		if err := s.runtime.Use(runtime.PluginOptions(cfg.Plugins)); err != nil {
			s.closeCache()
			return nil, err
		}
	}

	s.registry, err = s.runtime.Finalize(ctx)
	if err != nil {
		s.closeCache()
		return nil, err
	}
	return s, nil
}

// newCache builds the configured inference cache; "none" yields nil
func newCache(ctx context.Context, cfg config.InferenceCacheConfig) (cache.Cache, error) {
	conf := cache.Config{TTL: cfg.TTL, Prefix: cfg.Prefix}

	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return cache.NewMemoryWithConfig(conf), nil
	case "redis":
		c, err := cache.NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, conf)
		if err != nil {
			return nil, fmt.Errorf("inference cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown inference cache backend %q", cfg.Backend)
	}
}

// Close disconnects gateways and releases the cache
func (s *session) Close(ctx context.Context) error {
	err := s.runtime.Disconnect(ctx)
	if s.cache != nil {
		err = errors.Join(err, s.cache.Close())
	}
	_ = s.logger.Sync()
	return err
}

func (s *session) closeCache() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// adapterOf returns the adapter configured for a gateway id
func (s *session) adapterOf(gatewayID string) string {
	if gatewayID == "" {
		gatewayID = inferrer.DefaultGateway
	}
	return s.cfg.Gateways[gatewayID].Adapter
}
