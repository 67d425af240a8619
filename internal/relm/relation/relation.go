// Package relation holds the live objects built from relation, mapper,
// command and association components.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/schema"
)

var (
	// ErrNotReadable is returned when a relation's dataset cannot list tuples
	ErrNotReadable = errors.New("dataset is not readable")

	// ErrNotWritable is returned when a command's dataset cannot be mutated
	ErrNotWritable = errors.New("dataset is not writable")
)

// Reader is implemented by datasets that can list their tuples
type Reader interface {
	All(ctx context.Context) ([]map[string]any, error)
}

// Writer is implemented by datasets that support commands
type Writer interface {
	Insert(ctx context.Context, tuples []map[string]any) ([]map[string]any, error)
	Update(ctx context.Context, match, changes map[string]any) (int, error)
	Delete(ctx context.Context, match map[string]any) (int, error)
}

// Relation is a schema-bound view over a dataset
type Relation struct {
	Name      string
	GatewayID string
	Gateway   gateway.Gateway
	// DatasetName is the dataset the relation reads, usually Name
	DatasetName  string
	Dataset      any
	Schema       *schema.Schema
	Associations []*Association
}

// Adapter returns the adapter of the relation's gateway
func (r *Relation) Adapter() string {
	if r.Gateway == nil {
		return ""
	}
	return r.Gateway.Adapter()
}

// All returns the relation's tuples projected onto its schema
func (r *Relation) All(ctx context.Context) ([]map[string]any, error) {
	reader, ok := r.Dataset.(Reader)
	if !ok {
		return nil, fmt.Errorf("%w: relation %s (%T)", ErrNotReadable, r.Name, r.Dataset)
	}
	rows, err := reader.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read relation %s: %w", r.Name, err)
	}
	if r.Schema == nil || len(r.Schema.Attributes) == 0 {
		return rows, nil
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		projected := make(map[string]any, len(r.Schema.Attributes))
		for _, a := range r.Schema.Attributes {
			if v, ok := row[a.Name]; ok {
				projected[a.Key()] = v
			}
		}
		out[i] = projected
	}
	return out, nil
}

// Association returns the association declared under name or alias
func (r *Relation) Association(name string) (*Association, bool) {
	for _, a := range r.Associations {
		if a.Name == name || a.Alias() == name {
			return a, true
		}
	}
	return nil, false
}

func (r *Relation) String() string {
	return fmt.Sprintf("relation(%s gateway=%s dataset=%s)", r.Name, r.GatewayID, r.DatasetName)
}
