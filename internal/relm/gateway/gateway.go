// Package gateway defines the contract between the registry and
// adapter-specific connections to concrete data sources.
package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Gateway is an adapter-specific connection to a data source
type Gateway interface {
	// Adapter returns the adapter identifier ("memory", "sql", "redis")
	Adapter() string

	// Dataset returns the raw dataset with the given name
	Dataset(ctx context.Context, name string) (any, error)

	// Disconnect releases the underlying connection
	Disconnect() error
}

// Introspector is implemented by gateways that can describe their datasets.
// Inference requires it.
type Introspector interface {
	// Datasets lists dataset names
	Datasets(ctx context.Context) ([]string, error)

	// Columns describes the columns of one dataset. Returns an error wrapping
	// ErrDatasetNotFound when the dataset does not exist.
	Columns(ctx context.Context, dataset string) ([]Column, error)
}

// Column describes one column of a dataset
type Column struct {
	Name       string `msgpack:"name" yaml:"name"`
	Type       string `msgpack:"type" yaml:"type"`
	PrimaryKey bool   `msgpack:"primary_key" yaml:"primary_key"`
	Nullable   bool   `msgpack:"nullable" yaml:"nullable"`
}

// Config is passed to an adapter factory when a gateway component is built
type Config struct {
	ID      string
	Adapter string
	Args    []any
	Options map[string]any
	Logger  *zap.Logger
}

// Arg returns the positional argument at i as a string
func (c Config) Arg(i int) (string, bool) {
	if i >= len(c.Args) {
		return "", false
	}
	s, ok := c.Args[i].(string)
	return s, ok
}

// String returns a string option, falling back to def
func (c Config) String(name, def string) string {
	if v, ok := c.Options[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Int returns an int option, falling back to def
func (c Config) Int(name string, def int) int {
	switch v := c.Options[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Log returns the configured logger or a no-op logger
func (c Config) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger.With(zap.String("gateway", c.ID), zap.String("adapter", c.Adapter))
}

// Factory connects a gateway from its component configuration
type Factory func(ctx context.Context, cfg Config) (Gateway, error)

// HasDataset reports whether an introspector lists name
func HasDataset(ctx context.Context, in Introspector, name string) (bool, error) {
	names, err := in.Datasets(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list datasets: %w", err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
