package inferrer

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/gateway"
)

// Compiler turns introspected columns into an unregistered component
type Compiler interface {
	Type() component.Type
	Compile(q Query, columns []gateway.Column) (*component.Component, error)
}

// compilerOptions are the options a compiler is memoized on
type compilerOptions struct {
	// only restricts inferred attributes to the listed columns
	only []string
	// wrap aliases every attribute as "<wrap>_<name>"
	wrap string
}

func parseOptions(options map[string]any) compilerOptions {
	return compilerOptions{
		only: cast.ToStringSlice(options["only"]),
		wrap: cast.ToString(options["wrap"]),
	}
}

// canonical returns a stable memoization key for options
func canonical(options map[string]any) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("%s=%v;", k, options[k])
	}
	return out
}

func (o compilerOptions) attributes(columns []gateway.Column) []any {
	keep := func(string) bool { return true }
	if len(o.only) > 0 {
		set := make(map[string]struct{}, len(o.only))
		for _, n := range o.only {
			set[n] = struct{}{}
		}
		keep = func(n string) bool {
			_, ok := set[n]
			return ok
		}
	}

	attrs := make([]any, 0, len(columns))
	for _, c := range columns {
		if !keep(c.Name) {
			continue
		}
		attr := map[string]any{
			"name":        c.Name,
			"type":        c.Type,
			"primary_key": c.PrimaryKey,
			"nullable":    c.Nullable,
		}
		if o.wrap != "" {
			attr["alias"] = o.wrap + "_" + c.Name
		}
		attrs = append(attrs, attr)
	}
	return attrs
}

type schemaCompiler struct{ opts compilerOptions }

func (schemaCompiler) Type() component.Type { return component.Schemas }

func (c schemaCompiler) Compile(q Query, columns []gateway.Column) (*component.Component, error) {
	return &component.Component{
		Type:      component.Schemas,
		ID:        q.ID,
		Namespace: string(component.Schemas),
		Config: map[string]any{
			"id":         q.ID,
			"gateway":    q.Gateway,
			"dataset":    q.Dataset,
			"attributes": c.opts.attributes(columns),
			"inferred":   true,
		},
	}, nil
}

type datasetCompiler struct{ opts compilerOptions }

func (datasetCompiler) Type() component.Type { return component.Datasets }

func (c datasetCompiler) Compile(q Query, columns []gateway.Column) (*component.Component, error) {
	names := make([]string, 0, len(columns))
	for _, attr := range c.opts.attributes(columns) {
		names = append(names, attr.(map[string]any)["name"].(string))
	}
	return &component.Component{
		Type:      component.Datasets,
		ID:        q.ID,
		Namespace: string(component.Datasets),
		Config: map[string]any{
			"id":       q.ID,
			"gateway":  q.Gateway,
			"dataset":  q.Dataset,
			"columns":  names,
			"inferred": true,
		},
	}, nil
}

type relationCompiler struct{ opts compilerOptions }

func (relationCompiler) Type() component.Type { return component.Relations }

func (c relationCompiler) Compile(q Query, columns []gateway.Column) (*component.Component, error) {
	return &component.Component{
		Type:      component.Relations,
		ID:        q.ID,
		Namespace: string(component.Relations),
		Config: map[string]any{
			"id":       q.ID,
			"gateway":  q.Gateway,
			"dataset":  q.Dataset,
			"schema":   map[string]any{"attributes": c.opts.attributes(columns), "inferred": true},
			"inferred": true,
		},
	}, nil
}

func newCompiler(t component.Type, opts compilerOptions) (Compiler, bool) {
	switch t {
	case component.Schemas:
		return schemaCompiler{opts: opts}, true
	case component.Datasets:
		return datasetCompiler{opts: opts}, true
	case component.Relations:
		return relationCompiler{opts: opts}, true
	}
	return nil, false
}
