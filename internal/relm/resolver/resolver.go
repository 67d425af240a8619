// Package resolver maps dotted keys to built objects, running each key's
// builder at most once.
package resolver

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildFunc builds the object for a key. The context carries the keys
// currently under construction and must be passed to nested resolutions.
type BuildFunc func(ctx context.Context) (any, error)

// KeySource exposes declared keys that can be resolved without having been
// built yet (the component store).
type KeySource interface {
	Keys() []string
}

// Resolver caches built objects per key with single-flight semantics.
// Concurrent callers for the same key share one builder execution; a builder
// that re-requests its own key through the context fails with CycleError.
type Resolver struct {
	source KeySource
	group  singleflight.Group

	mu       sync.RWMutex
	resolved map[string]any
	order    []string
}

// New creates a resolver over the keys of source (may be nil)
func New(source KeySource) *Resolver {
	return &Resolver{
		source:   source,
		resolved: make(map[string]any),
	}
}

// Call returns the cached object for key, or runs build exactly once and
// caches its result. Builder errors are returned and not cached.
func (r *Resolver) Call(ctx context.Context, key string, build BuildFunc) (any, error) {
	if v, ok := r.Resolved(key); ok {
		return v, nil
	}

	stack := buildStack(ctx)
	if slices.Contains(stack, key) {
		return nil, &CycleError{Key: key, Path: append(slices.Clone(stack), key)}
	}
	if build == nil {
		return nil, &UnresolvableError{Key: key}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.Resolved(key); ok {
			return v, nil
		}

		v, err := build(withKey(ctx, stack, key))
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.resolved[key]; ok {
			return existing, nil
		}
		r.resolved[key] = v
		r.order = append(r.order, key)
		return v, nil
	})
	return v, err
}

// Resolved returns the cached object for key, if built
func (r *Resolver) Resolved(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.resolved[key]
	return v, ok
}

// Keys returns declared keys followed by resolved keys that were not declared
func (r *Resolver) Keys() []string {
	var keys []string
	if r.source != nil {
		keys = append(keys, r.source.Keys()...)
	}

	r.mu.RLock()
	resolved := slices.Clone(r.order)
	r.mu.RUnlock()

	seen := make(map[string]struct{}, len(keys)+len(resolved))
	out := make([]string, 0, len(keys)+len(resolved))
	for _, k := range append(keys, resolved...) {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// IDs returns the last dotted segment of every key
func (r *Resolver) IDs() []string {
	keys := r.Keys()
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k[strings.LastIndex(k, ".")+1:]
	}
	return ids
}

// Has reports whether key is declared or resolved
func (r *Resolver) Has(key string) bool {
	if _, ok := r.Resolved(key); ok {
		return true
	}
	if r.source == nil {
		return false
	}
	return slices.Contains(r.source.Keys(), key)
}

type stackKey struct{}

func buildStack(ctx context.Context) []string {
	s, _ := ctx.Value(stackKey{}).([]string)
	return s
}

func withKey(ctx context.Context, stack []string, key string) context.Context {
	next := make([]string, len(stack)+1)
	copy(next, stack)
	next[len(stack)] = key
	return context.WithValue(ctx, stackKey{}, next)
}

// Building returns the keys under construction in ctx, outermost first
func Building(ctx context.Context) []string {
	return slices.Clone(buildStack(ctx))
}
