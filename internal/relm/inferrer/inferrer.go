// Package inferrer synthesizes components for undeclared schemas, datasets
// and relations by introspecting the gateway that owns the dataset.
package inferrer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/cache"
	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/gateway"
)

// DefaultGateway is used when a query names no gateway
const DefaultGateway = "default"

// Query identifies what to infer: the component id, the dataset to
// introspect (defaults to the id) and the owning gateway.
type Query struct {
	ID      string
	Dataset string
	Gateway string
}

// Normalize fills defaults
func (q Query) Normalize() Query {
	if q.Dataset == "" {
		q.Dataset = q.ID
	}
	if q.Gateway == "" {
		q.Gateway = DefaultGateway
	}
	return q
}

func (q Query) String() string {
	q = q.Normalize()
	return fmt.Sprintf("%s(%s:%s)", q.ID, q.Gateway, q.Dataset)
}

// GatewaySource resolves gateways by id
type GatewaySource interface {
	Gateway(ctx context.Context, id string) (gateway.Gateway, error)
}

// Option configures an Inferrer
type Option func(*Inferrer)

// WithCache stores introspected columns in c
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(i *Inferrer) {
		i.cache = c
		i.ttl = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Inferrer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Inferrer builds components from dataset introspection
type Inferrer struct {
	mu        sync.Mutex
	compilers map[string]Compiler

	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// New creates an inferrer
func New(opts ...Option) *Inferrer {
	i := &Inferrer{
		compilers: make(map[string]Compiler),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Compiler returns the compiler for (t, options), creating it on first use
func (i *Inferrer) Compiler(t component.Type, options map[string]any) (Compiler, error) {
	key := string(t) + "|" + canonical(options)

	i.mu.Lock()
	defer i.mu.Unlock()

	if c, ok := i.compilers[key]; ok {
		return c, nil
	}
	c, ok := newCompiler(t, parseOptions(options))
	if !ok {
		return nil, ErrUnsupportedType
	}
	i.compilers[key] = c
	return c, nil
}

// Infer introspects the query's dataset and compiles a component of type t.
// The component is not registered anywhere.
func (i *Inferrer) Infer(ctx context.Context, src GatewaySource, q Query, t component.Type, options map[string]any) (*component.Component, error) {
	q = q.Normalize()
	fail := func(err error) error {
		return &InferenceError{Type: t, Query: q, Err: err}
	}

	compiler, err := i.Compiler(t, options)
	if err != nil {
		return nil, fail(err)
	}

	columns, err := i.Columns(ctx, src, q.Gateway, q.Dataset)
	if err != nil {
		return nil, fail(err)
	}

	c, err := compiler.Compile(q, columns)
	if err != nil {
		return nil, fail(err)
	}

	i.logger.Debug("inferred component",
		zap.String("type", string(t)),
		zap.String("id", q.ID),
		zap.String("gateway", q.Gateway),
		zap.Int("columns", len(columns)),
	)
	return c, nil
}

// Columns returns a dataset's columns, consulting the cache first
func (i *Inferrer) Columns(ctx context.Context, src GatewaySource, gatewayID, dataset string) ([]gateway.Column, error) {
	key := gatewayID + ":" + dataset
	if cols, ok := i.cached(ctx, key); ok {
		return cols, nil
	}

	gw, err := src.Gateway(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	in, ok := gw.(gateway.Introspector)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoIntrospection, gatewayID, gw.Adapter())
	}

	exists, err := gateway.HasDataset(ctx, in, dataset)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s in gateway %s", ErrDatasetNotFound, dataset, gatewayID)
	}

	cols, err := in.Columns(ctx, dataset)
	if errors.Is(err, gateway.ErrDatasetNotFound) {
		return nil, fmt.Errorf("%w: %s in gateway %s", ErrDatasetNotFound, dataset, gatewayID)
	}
	if err != nil {
		return nil, err
	}

	i.store(ctx, key, cols)
	return cols, nil
}

// Invalidate drops cached columns of a gateway, or of every gateway when id
// is empty
func (i *Inferrer) Invalidate(ctx context.Context, gatewayID string) error {
	if i.cache == nil {
		return nil
	}
	prefix := ""
	if gatewayID != "" {
		prefix = gatewayID + ":"
	}
	return i.cache.DeletePrefix(ctx, prefix)
}

func (i *Inferrer) cached(ctx context.Context, key string) ([]gateway.Column, bool) {
	if i.cache == nil {
		return nil, false
	}

	data, err := i.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			i.logger.Warn("inference cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var cols []gateway.Column
	if err := msgpack.Unmarshal(data, &cols); err != nil {
		i.logger.Warn("inference cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return cols, true
}

func (i *Inferrer) store(ctx context.Context, key string, cols []gateway.Column) {
	if i.cache == nil {
		return
	}

	data, err := msgpack.Marshal(cols)
	if err != nil {
		i.logger.Warn("failed to encode columns", zap.String("key", key), zap.Error(err))
		return
	}
	if err := i.cache.Set(ctx, key, data, i.ttl); err != nil {
		i.logger.Warn("inference cache write failed", zap.String("key", key), zap.Error(err))
	}
}
