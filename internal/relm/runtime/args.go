package runtime

import (
	"fmt"
	"sort"
)

// GatewaySpec configures one gateway
type GatewaySpec struct {
	Adapter string
	Args    []any
	Options map[string]any
}

// GatewayArgs supplies the gateways a runtime starts with
type GatewayArgs interface {
	gatewaySpecs() (map[string]GatewaySpec, error)
}

type positional struct {
	adapter string
	args    []any
}

// Positional configures the "default" gateway. A trailing map[string]any
// argument becomes the adapter options.
func Positional(adapter string, args ...any) GatewayArgs {
	return positional{adapter: adapter, args: args}
}

func (p positional) gatewaySpecs() (map[string]GatewaySpec, error) {
	spec, err := specFrom(append([]any{p.adapter}, p.args...))
	if err != nil {
		return nil, err
	}
	return map[string]GatewaySpec{"default": spec}, nil
}

// Named configures gateways by id. Each value starts with the adapter name,
// followed by adapter arguments and an optional options map:
//
//	Named(map[string][]any{"default": {"memory"}, "other": {"sql", "sqlite::memory"}})
type Named map[string][]any

func (n Named) gatewaySpecs() (map[string]GatewaySpec, error) {
	out := make(map[string]GatewaySpec, len(n))
	for id, values := range n {
		spec, err := specFrom(values)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: %w", id, err)
		}
		out[id] = spec
	}
	return out, nil
}

// Specs configures gateways from explicit specs
type Specs map[string]GatewaySpec

func (s Specs) gatewaySpecs() (map[string]GatewaySpec, error) {
	return s, nil
}

func specFrom(values []any) (GatewaySpec, error) {
	if len(values) == 0 {
		return GatewaySpec{}, fmt.Errorf("adapter is required")
	}
	adapter, ok := values[0].(string)
	if !ok || adapter == "" {
		return GatewaySpec{}, fmt.Errorf("adapter must be a non-empty string, got %v", values[0])
	}

	spec := GatewaySpec{Adapter: adapter}
	rest := values[1:]
	if n := len(rest); n > 0 {
		if opts, ok := rest[n-1].(map[string]any); ok {
			spec.Options = opts
			rest = rest[:n-1]
		}
	}
	if len(rest) > 0 {
		spec.Args = append([]any(nil), rest...)
	}
	return spec, nil
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
