package relation

import (
	"context"
	"fmt"
)

// Command kinds
const (
	Create = "create"
	Update = "update"
	Delete = "delete"
)

// Result shapes
const (
	ResultOne  = "one"
	ResultMany = "many"
)

// Command mutates a relation's dataset
type Command struct {
	ID       string
	Relation *Relation
	Kind     string
	Result   string
}

// NewCommand validates kind and result
func NewCommand(id string, rel *Relation, kind, result string) (*Command, error) {
	switch kind {
	case Create, Update, Delete:
	default:
		return nil, fmt.Errorf("unknown command type %q for %s", kind, id)
	}
	switch result {
	case "":
		result = ResultMany
	case ResultOne, ResultMany:
	default:
		return nil, fmt.Errorf("unknown command result %q for %s", result, id)
	}
	return &Command{ID: id, Relation: rel, Kind: kind, Result: result}, nil
}

// Input carries command arguments. Create uses Tuples; Update uses Match and
// Changes; Delete uses Match.
type Input struct {
	Tuples  []map[string]any
	Match   map[string]any
	Changes map[string]any
}

// Output is the command result: created tuples or the affected count
type Output struct {
	Tuples   []map[string]any
	Affected int
}

// Call runs the command against the relation's dataset
func (c *Command) Call(ctx context.Context, in Input) (Output, error) {
	w, ok := c.Relation.Dataset.(Writer)
	if !ok {
		return Output{}, fmt.Errorf("%w: relation %s (%T)", ErrNotWritable, c.Relation.Name, c.Relation.Dataset)
	}

	switch c.Kind {
	case Create:
		if c.Result == ResultOne && len(in.Tuples) != 1 {
			return Output{}, fmt.Errorf("command %s expects exactly one tuple, got %d", c.ID, len(in.Tuples))
		}
		tuples, err := w.Insert(ctx, in.Tuples)
		if err != nil {
			return Output{}, fmt.Errorf("command %s failed: %w", c.ID, err)
		}
		return Output{Tuples: tuples, Affected: len(tuples)}, nil
	case Update:
		n, err := w.Update(ctx, in.Match, in.Changes)
		if err != nil {
			return Output{}, fmt.Errorf("command %s failed: %w", c.ID, err)
		}
		return Output{Affected: n}, nil
	default:
		n, err := w.Delete(ctx, in.Match)
		if err != nil {
			return Output{}, fmt.Errorf("command %s failed: %w", c.ID, err)
		}
		return Output{Affected: n}, nil
	}
}
