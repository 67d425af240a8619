package runtime

import (
	"fmt"
	"maps"

	"github.com/spf13/cast"

	"github.com/conduit-lang/relm/internal/relm/component"
)

func (rt *Runtime) checkOpen() error {
	if rt.config.Frozen() {
		return ErrFinalized
	}
	return nil
}

// Register adds a component of any type
func (rt *Runtime) Register(t component.Type, opts component.Options) (*component.Component, error) {
	if err := rt.checkOpen(); err != nil {
		return nil, err
	}
	return rt.components.Add(t, opts)
}

// Gateway declares a gateway and records it in the config tree
func (rt *Runtime) Gateway(id string, adapter string, args ...any) error {
	if err := rt.checkOpen(); err != nil {
		return err
	}
	spec, err := specFrom(append([]any{adapter}, args...))
	if err != nil {
		return fmt.Errorf("gateway %s: %w", id, err)
	}
	if err := rt.configureGateway(id, spec); err != nil {
		return err
	}

	cfg := map[string]any{"adapter": spec.Adapter}
	if spec.Args != nil {
		cfg["args"] = spec.Args
	}
	if spec.Options != nil {
		cfg["options"] = spec.Options
	}
	_, err = rt.components.Add(component.Gateways, component.Options{ID: id, Config: cfg})
	return err
}

// Dataset declares a dataset; cfg may name "gateway" and "dataset"
func (rt *Runtime) Dataset(id string, cfg map[string]any) error {
	_, err := rt.Register(component.Datasets, component.Options{ID: id, Config: cfg})
	return err
}

// Schema declares a schema; set "infer" to derive attributes from the dataset
func (rt *Runtime) Schema(id string, cfg map[string]any) error {
	_, err := rt.Register(component.Schemas, component.Options{ID: id, Config: cfg})
	return err
}

// Relation declares a relation
func (rt *Runtime) Relation(id string, cfg map[string]any) error {
	_, err := rt.Register(component.Relations, component.Options{ID: id, Config: cfg})
	return err
}

// Mapper declares a mapper of a relation
func (rt *Runtime) Mapper(relation, id string, cfg map[string]any) error {
	return rt.registerScoped(component.Mappers, relation, id, cfg)
}

// Command declares a command of a relation. "type" defaults to the id.
func (rt *Runtime) Command(relation, id string, cfg map[string]any) error {
	return rt.registerScoped(component.Commands, relation, id, cfg)
}

// Association declares an association of source named name. The association
// is registered under cfg["as"] when given; "target" defaults to name.
func (rt *Runtime) Association(source, name string, cfg map[string]any) error {
	conf := maps.Clone(cfg)
	if conf == nil {
		conf = make(map[string]any)
	}
	conf["name"] = name
	if _, ok := conf["target"]; !ok {
		conf["target"] = name
	}

	id := name
	if as := cast.ToString(conf["as"]); as != "" {
		id = as
	}
	return rt.registerScoped(component.Associations, source, id, conf)
}

func (rt *Runtime) registerScoped(t component.Type, relation, id string, cfg map[string]any) error {
	if relation == "" {
		return fmt.Errorf("%s %s requires a relation", t.Singular(), id)
	}
	conf := maps.Clone(cfg)
	if conf == nil {
		conf = make(map[string]any)
	}
	conf["relation"] = relation

	_, err := rt.Register(t, component.Options{
		ID:        id,
		Namespace: string(t) + "." + relation,
		Config:    conf,
	})
	return err
}

// AutoRegister configures the loader to read component files from dir at
// finalize
func (rt *Runtime) AutoRegister(dir string, namespace bool) error {
	if err := rt.checkOpen(); err != nil {
		return err
	}
	if err := rt.config.Set("auto_register.root_directory", dir); err != nil {
		return err
	}
	return rt.config.Set("auto_register.namespace", namespace)
}
