// Package memory implements the "memory" gateway adapter: datasets are
// in-process slices of tuples, created on first access.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

// AdapterName is the identifier the adapter is registered under
const AdapterName = "memory"

// Gateway holds named in-memory datasets
type Gateway struct {
	mu           sync.RWMutex
	datasets     map[string]*Dataset
	disconnected bool
}

// New is the adapter factory. The "datasets" option pre-declares datasets
// and their columns: {"users": ["id", "name"]}.
func New(_ context.Context, cfg gateway.Config) (gateway.Gateway, error) {
	g := NewGateway()

	declared, _ := cfg.Options["datasets"].(map[string]any)
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var cols []gateway.Column
		switch spec := declared[name].(type) {
		case []any:
			for _, c := range spec {
				s, ok := c.(string)
				if !ok {
					return nil, fmt.Errorf("dataset %s: column names must be strings, got %T", name, c)
				}
				cols = append(cols, gateway.Column{Name: s, Type: "any", PrimaryKey: s == "id", Nullable: s != "id"})
			}
		case []string:
			for _, s := range spec {
				cols = append(cols, gateway.Column{Name: s, Type: "any", PrimaryKey: s == "id", Nullable: s != "id"})
			}
		case nil:
		default:
			return nil, fmt.Errorf("dataset %s: unsupported column spec %T", name, spec)
		}
		g.CreateDataset(name, cols...)
	}

	cfg.Log().Debug("memory gateway connected")
	return g, nil
}

// NewGateway creates an empty memory gateway
func NewGateway() *Gateway {
	return &Gateway{datasets: make(map[string]*Dataset)}
}

// Adapter implements gateway.Gateway
func (g *Gateway) Adapter() string {
	return AdapterName
}

// CreateDataset declares a dataset with explicit columns. An existing dataset
// is returned unchanged.
func (g *Gateway) CreateDataset(name string, columns ...gateway.Column) *Dataset {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ds, ok := g.datasets[name]; ok {
		return ds
	}
	ds := &Dataset{name: name, columns: columns}
	g.datasets[name] = ds
	return ds
}

// Dataset returns the named dataset, creating it when missing
func (g *Gateway) Dataset(_ context.Context, name string) (any, error) {
	g.mu.RLock()
	disconnected := g.disconnected
	g.mu.RUnlock()
	if disconnected {
		return nil, gateway.ErrDisconnected
	}
	return g.CreateDataset(name), nil
}

// Datasets implements gateway.Introspector
func (g *Gateway) Datasets(_ context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.datasets))
	for name := range g.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Columns implements gateway.Introspector. Datasets without declared columns
// report the keys of their stored tuples.
func (g *Gateway) Columns(_ context.Context, dataset string) ([]gateway.Column, error) {
	g.mu.RLock()
	ds, ok := g.datasets[dataset]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrDatasetNotFound, dataset)
	}
	return ds.Columns(), nil
}

// Disconnect drops all datasets
func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.datasets = make(map[string]*Dataset)
	g.disconnected = true
	return nil
}

// Dataset is an ordered collection of tuples
type Dataset struct {
	mu      sync.RWMutex
	name    string
	columns []gateway.Column
	rows    []map[string]any
}

// Name returns the dataset name
func (d *Dataset) Name() string {
	return d.name
}

// Columns returns declared columns, or columns derived from stored tuples
func (d *Dataset) Columns() []gateway.Column {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.columns) > 0 {
		out := make([]gateway.Column, len(d.columns))
		copy(out, d.columns)
		return out
	}

	types := make(map[string]string)
	for _, row := range d.rows {
		for k, v := range row {
			if _, seen := types[k]; !seen || types[k] == "nil" {
				types[k] = typeName(v)
			}
		}
	}
	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]gateway.Column, len(names))
	for i, n := range names {
		cols[i] = gateway.Column{Name: n, Type: types[n], PrimaryKey: n == "id", Nullable: n != "id"}
	}
	return cols
}

// All returns copies of all tuples
func (d *Dataset) All(_ context.Context) ([]map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]map[string]any, len(d.rows))
	for i, row := range d.rows {
		out[i] = maps.Clone(row)
	}
	return out, nil
}

// Insert appends tuples and returns copies of what was stored
func (d *Dataset) Insert(_ context.Context, tuples []map[string]any) ([]map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]map[string]any, len(tuples))
	for i, t := range tuples {
		row := maps.Clone(t)
		d.rows = append(d.rows, row)
		out[i] = maps.Clone(row)
	}
	return out, nil
}

// Update applies changes to every tuple matching all match pairs
func (d *Dataset) Update(_ context.Context, match, changes map[string]any) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, row := range d.rows {
		if matches(row, match) {
			maps.Copy(row, changes)
			n++
		}
	}
	return n, nil
}

// Delete removes every tuple matching all match pairs
func (d *Dataset) Delete(_ context.Context, match map[string]any) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.rows[:0]
	n := 0
	for _, row := range d.rows {
		if matches(row, match) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	d.rows = kept
	return n, nil
}

func matches(row, match map[string]any) bool {
	for k, v := range match {
		if rv, ok := row[k]; !ok || rv != v {
			return false
		}
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "float"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
