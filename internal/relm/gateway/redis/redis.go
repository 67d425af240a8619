// Package redis implements the "redis" gateway adapter. Dataset names are
// kept in a set, and each dataset's columns in a hash mapping column name to
// type:
//
//	<prefix>datasets          SET  {users, posts}
//	<prefix>schema:users      HASH {id: integer, name: string}
//	<prefix>pk:users          STRING id
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

// AdapterName is the identifier the adapter is registered under
const AdapterName = "redis"

// DefaultPrefix namespaces every key the gateway touches
const DefaultPrefix = "relm:"

// Gateway is a Redis-backed gateway
type Gateway struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// New is the adapter factory. The address is the first positional argument or
// the "addr" option; "password", "db" and "prefix" are optional.
func New(ctx context.Context, cfg gateway.Config) (gateway.Gateway, error) {
	addr, ok := cfg.Arg(0)
	if !ok {
		addr = cfg.String("addr", "localhost:6379")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.String("password", ""),
		DB:       cfg.Int("db", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	g := NewWithClient(client, cfg.String("prefix", DefaultPrefix))
	g.logger = cfg.Log()
	g.logger.Debug("redis gateway connected", zap.String("addr", addr))
	return g, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, prefix string) *Gateway {
	return &Gateway{client: client, prefix: prefix, logger: zap.NewNop()}
}

// Adapter implements gateway.Gateway
func (g *Gateway) Adapter() string {
	return AdapterName
}

// Client returns the underlying client
func (g *Gateway) Client() *redis.Client {
	return g.client
}

// DefineDataset records a dataset and its columns
func (g *Gateway) DefineDataset(ctx context.Context, name string, columns ...gateway.Column) error {
	pipe := g.client.TxPipeline()
	pipe.SAdd(ctx, g.prefix+"datasets", name)
	if len(columns) > 0 {
		fields := make(map[string]any, len(columns))
		for _, c := range columns {
			fields[c.Name] = c.Type
			if c.PrimaryKey {
				pipe.Set(ctx, g.prefix+"pk:"+name, c.Name, 0)
			}
		}
		pipe.HSet(ctx, g.prefix+"schema:"+name, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to define dataset %s: %w", name, err)
	}
	return nil
}

// Dataset returns a handle on the named dataset
func (g *Gateway) Dataset(_ context.Context, name string) (any, error) {
	return &Dataset{Name: name, Key: g.prefix + "data:" + name, Client: g.client}, nil
}

// Datasets implements gateway.Introspector
func (g *Gateway) Datasets(ctx context.Context) ([]string, error) {
	names, err := g.client.SMembers(ctx, g.prefix+"datasets").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Columns implements gateway.Introspector
func (g *Gateway) Columns(ctx context.Context, dataset string) ([]gateway.Column, error) {
	known, err := g.client.SIsMember(ctx, g.prefix+"datasets", dataset).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check dataset %s: %w", dataset, err)
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", gateway.ErrDatasetNotFound, dataset)
	}

	fields, err := g.client.HGetAll(ctx, g.prefix+"schema:"+dataset).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", dataset, err)
	}

	pk, err := g.client.Get(ctx, g.prefix+"pk:"+dataset).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", dataset, err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]gateway.Column, len(names))
	for i, name := range names {
		cols[i] = gateway.Column{
			Name:       name,
			Type:       fields[name],
			PrimaryKey: name == pk,
			Nullable:   name != pk,
		}
	}
	return cols, nil
}

// Disconnect closes the client
func (g *Gateway) Disconnect() error {
	g.logger.Debug("redis gateway disconnecting")
	return g.client.Close()
}

// Dataset is the handle returned by Gateway.Dataset
type Dataset struct {
	Name   string
	Key    string
	Client *redis.Client
}
