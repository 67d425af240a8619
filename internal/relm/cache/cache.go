// Package cache provides byte caches keyed by string, used to keep dataset
// introspection results between inference runs and across processes.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is implemented by every cache backend
type Cache interface {
	// Get returns the value for key or an error wrapping ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value; a zero ttl uses the backend default, a negative ttl
	// never expires
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases backend resources
	Close() error
}

// Config holds settings shared by all backends
type Config struct {
	// TTL is used when Set is called with a zero ttl
	TTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:    10 * time.Minute,
		Prefix: "relm:inference:",
	}
}

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

func (c Config) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return c.TTL
	}
	return ttl
}
