package registry

import (
	"context"
	"maps"

	"github.com/conduit-lang/relm/internal/relm/component"
)

// Factory builds the live object for a component. The registry passed in
// is the root view so builders can reach any namespace; ctx must be passed
// to nested fetches.
type Factory func(ctx context.Context, c *component.Component, r *Registry) (any, error)

// Factories maps component types to their builders
type Factories map[component.Type]Factory

// DefaultFactories returns the builders for every core type
func DefaultFactories() Factories {
	return Factories{
		component.Gateways:     buildGateway,
		component.Datasets:     buildDataset,
		component.Schemas:      buildSchema,
		component.Relations:    buildRelation,
		component.Mappers:      buildMapper,
		component.Commands:     buildCommand,
		component.Associations: buildAssociation,
		component.Plugins:      buildPlugin,
	}
}

// With returns a copy with f registered for t
func (f Factories) With(t component.Type, factory Factory) Factories {
	out := maps.Clone(f)
	out[t] = factory
	return out
}
