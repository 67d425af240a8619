package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/inferrer"
	"github.com/conduit-lang/relm/internal/relm/notifications"
	"github.com/conduit-lang/relm/internal/relm/relation"
	"github.com/conduit-lang/relm/internal/relm/schema"
)

func buildGateway(ctx context.Context, c *component.Component, r *Registry) (any, error) {
	if r.Disconnected() {
		return nil, ErrDisconnected
	}
	if gw, ok := c.Constant.(gateway.Gateway); ok {
		return gw, nil
	}

	adapter := c.StringOption("adapter", "")
	factory, err := r.state.adapters.Lookup(adapter)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: %w", c.ID, err)
	}

	args, _ := c.Config["args"].([]any)
	options, _ := c.Config["options"].(map[string]any)
	gw, err := factory(ctx, gateway.Config{
		ID:      c.ID,
		Adapter: adapter,
		Args:    args,
		Options: options,
		Logger:  r.state.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect gateway %s: %w", c.ID, err)
	}

	err = r.Trigger(ctx, notifications.GatewayConnected, map[string]any{
		"gateway": gw,
		"id":      c.ID,
		"adapter": adapter,
	})
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func buildDataset(ctx context.Context, c *component.Component, r *Registry) (any, error) {
	gw, err := r.Gateway(ctx, c.StringOption("gateway", inferrer.DefaultGateway))
	if err != nil {
		return nil, err
	}
	return gw.Dataset(ctx, c.StringOption("dataset", c.ID))
}

func buildSchema(ctx context.Context, c *component.Component, r *Registry) (any, error) {
	if s, ok := c.Constant.(*schema.Schema); ok {
		return s, nil
	}
	if !c.BoolOption("infer") {
		return schema.FromConfig(c.ID, c.Config)
	}

	inferred, err := r.Schemas().Fetch(ctx, Query{
		ID:      c.ID,
		Dataset: c.StringOption("dataset", c.ID),
		Gateway: c.StringOption("gateway", inferrer.DefaultGateway),
	})
	if err != nil {
		return nil, err
	}
	return schema.FromConfig(c.ID, inferred.(*component.Component).Config)
}

func buildRelation(ctx context.Context, c *component.Component, r *Registry) (any, error) {
	gatewayID := c.StringOption("gateway", inferrer.DefaultGateway)
	datasetName := c.StringOption("dataset", c.ID)

	gw, err := r.Gateway(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	s, err := relationSchema(ctx, c, r, gatewayID, datasetName)
	if err != nil {
		return nil, err
	}

	ds, err := gw.Dataset(ctx, datasetName)
	if err != nil {
		return nil, fmt.Errorf("relation %s: %w", c.ID, err)
	}

	payload := map[string]any{"relation": c.ID, "gateway": gatewayID, "dataset": ds}
	if err := r.Trigger(ctx, notifications.DatasetAllocated, payload); err != nil {
		return nil, err
	}
	ds = payload["dataset"]

	payload = map[string]any{"relation": c.ID, "schema": s}
	if err := r.Trigger(ctx, notifications.SchemaSet, payload); err != nil {
		return nil, err
	}
	if replaced, ok := payload["schema"].(*schema.Schema); ok {
		s = replaced
	}

	assocs, err := relationAssociations(ctx, c, r)
	if err != nil {
		return nil, err
	}

	rel := &relation.Relation{
		Name:         c.ID,
		GatewayID:    gatewayID,
		Gateway:      gw,
		DatasetName:  datasetName,
		Dataset:      ds,
		Schema:       s,
		Associations: assocs,
	}
	if err := r.Trigger(ctx, notifications.RelationRegistered, map[string]any{"relation": rel, "id": c.ID}); err != nil {
		return nil, err
	}
	return rel, nil
}

// relationSchema picks the relation schema: inline config, a named schema
// component, a schema declared under the relation id, or inference
func relationSchema(ctx context.Context, c *component.Component, r *Registry, gatewayID, datasetName string) (*schema.Schema, error) {
	switch v := c.Config["schema"].(type) {
	case *schema.Schema:
		return v, nil
	case string:
		return fetchSchema(ctx, r, v)
	case map[string]any:
		if !cast.ToBool(v["infer"]) {
			s, err := schema.FromConfig(c.ID, v)
			if err != nil {
				return nil, err
			}
			s.Dataset = datasetName
			s.Inferred = cast.ToBool(v["inferred"])
			return s, nil
		}
	}

	if _, ok := r.state.components.Get(component.Schemas, c.ID); ok {
		return fetchSchema(ctx, r, c.ID)
	}

	inferred, err := r.Schemas().Fetch(ctx, Query{ID: c.ID, Dataset: datasetName, Gateway: gatewayID})
	if errors.Is(err, inferrer.ErrNoIntrospection) || errors.Is(err, inferrer.ErrDatasetNotFound) {
		r.state.logger.Debug("relation schema not inferred", zap.String("relation", c.ID), zap.Error(err))
		return &schema.Schema{Name: c.ID, Dataset: datasetName}, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := schema.FromConfig(c.ID, inferred.(*component.Component).Config)
	if err != nil {
		return nil, err
	}
	s.Inferred = true
	return s, nil
}

func fetchSchema(ctx context.Context, r *Registry, id string) (*schema.Schema, error) {
	v, err := r.Schemas().Fetch(ctx, Name(id))
	if err != nil {
		return nil, err
	}
	s, ok := v.(*schema.Schema)
	if !ok {
		return nil, fmt.Errorf("schema %s has unexpected type %T", id, v)
	}
	return s, nil
}

func relationAssociations(ctx context.Context, c *component.Component, r *Registry) ([]*relation.Association, error) {
	declared := r.state.components.Associations(string(component.Associations) + "." + c.ID)
	if len(declared) == 0 {
		return nil, nil
	}

	scope := r.Associations().Scoped(c.ID)
	out := make([]*relation.Association, 0, len(declared))
	for _, a := range declared {
		v, err := scope.Fetch(ctx, Name(a.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, v.(*relation.Association))
	}
	return out, nil
}

func buildMapper(_ context.Context, c *component.Component, _ *Registry) (any, error) {
	if m, ok := c.Constant.(*relation.Mapper); ok {
		return m.Clone(), nil
	}
	return &relation.Mapper{
		ID:       c.ID,
		Relation: c.StringOption("relation", c.Parent()),
		Rename:   cast.ToStringMapString(c.Config["rename"]),
		Only:     cast.ToStringSlice(c.Config["only"]),
	}, nil
}

func buildCommand(ctx context.Context, c *component.Component, r *Registry) (any, error) {
	relID := c.StringOption("relation", c.Parent())

	payload := map[string]any{"relation": relID, "command": c.ID}
	if err := r.Trigger(ctx, notifications.CommandsBeforeBuild, payload); err != nil {
		return nil, err
	}

	v, err := r.Relations().Fetch(ctx, Name(relID))
	if err != nil {
		return nil, err
	}
	rel, ok := v.(*relation.Relation)
	if !ok {
		return nil, fmt.Errorf("relation %s has unexpected type %T", relID, v)
	}
	return relation.NewCommand(c.ID, rel, c.StringOption("type", c.ID), c.StringOption("result", ""))
}

func buildAssociation(_ context.Context, c *component.Component, _ *Registry) (any, error) {
	name := c.StringOption("name", c.ID)
	return &relation.Association{
		Source:     c.Parent(),
		Name:       name,
		As:         c.ID,
		Target:     c.StringOption("target", name),
		Kind:       c.StringOption("kind", relation.ManyToOne),
		ForeignKey: c.StringOption("foreign_key", ""),
	}, nil
}

func buildPlugin(_ context.Context, c *component.Component, r *Registry) (any, error) {
	return r.state.plugins.Fetch(c.StringOption("plugin", c.ID))
}
