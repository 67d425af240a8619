package inferrer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/cache"
	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/gateway/memory"
)

// gateways is a GatewaySource over a fixed map that counts lookups
type gateways struct {
	byID    map[string]gateway.Gateway
	lookups int
}

func (g *gateways) Gateway(_ context.Context, id string) (gateway.Gateway, error) {
	g.lookups++
	gw, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("gateway %s not found", id)
	}
	return gw, nil
}

// opaque is a gateway without introspection
type opaque struct{}

func (opaque) Adapter() string { return "opaque" }

func (opaque) Dataset(context.Context, string) (any, error) { return nil, nil }

func (opaque) Disconnect() error { return nil }

func setupSource() *gateways {
	gw := memory.NewGateway()
	gw.CreateDataset("users",
		gateway.Column{Name: "id", Type: "integer", PrimaryKey: true},
		gateway.Column{Name: "name", Type: "string", Nullable: true},
	)
	return &gateways{byID: map[string]gateway.Gateway{"default": gw, "opaque": opaque{}}}
}

func TestInferrer_InferSchema(t *testing.T) {
	i := New()

	c, err := i.Infer(context.Background(), setupSource(), Query{ID: "users"}, component.Schemas, nil)
	require.NoError(t, err)

	assert.Equal(t, component.Schemas, c.Type)
	assert.Equal(t, "schemas.users", c.Key())
	assert.Equal(t, "default", c.Config["gateway"])
	assert.Equal(t, true, c.Config["inferred"])

	attrs := c.Config["attributes"].([]any)
	require.Len(t, attrs, 2)
	assert.Equal(t, "id", attrs[0].(map[string]any)["name"])
	assert.Equal(t, true, attrs[0].(map[string]any)["primary_key"])
	assert.False(t, c.Built())
}

func TestInferrer_InferRelationAndDataset(t *testing.T) {
	i := New()
	src := setupSource()

	rel, err := i.Infer(context.Background(), src, Query{ID: "people", Dataset: "users"}, component.Relations, nil)
	require.NoError(t, err)
	assert.Equal(t, "relations.people", rel.Key())
	assert.Equal(t, "users", rel.Config["dataset"])
	assert.Contains(t, rel.Config, "schema")

	ds, err := i.Infer(context.Background(), src, Query{ID: "users"}, component.Datasets, map[string]any{"only": []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ds.Config["columns"])
}

func TestInferrer_Wrap(t *testing.T) {
	i := New()

	c, err := i.Infer(context.Background(), setupSource(), Query{ID: "users"}, component.Schemas, map[string]any{"wrap": "users"})
	require.NoError(t, err)

	attrs := c.Config["attributes"].([]any)
	assert.Equal(t, "users_id", attrs[0].(map[string]any)["alias"])
}

func TestInferrer_Errors(t *testing.T) {
	i := New()
	src := setupSource()
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		typ   component.Type
		want  error
	}{
		{"missing dataset", Query{ID: "posts"}, component.Schemas, ErrDatasetNotFound},
		{"no introspection", Query{ID: "users", Gateway: "opaque"}, component.Schemas, ErrNoIntrospection},
		{"unsupported type", Query{ID: "users"}, component.Mappers, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.Infer(ctx, src, tt.query, tt.typ, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInferenceError(err))

			var ie *InferenceError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.query.ID, ie.Query.ID)
		})
	}
}

func TestInferrer_CompilerMemoized(t *testing.T) {
	i := New()

	a, err := i.Compiler(component.Schemas, map[string]any{"wrap": "u", "only": []string{"id"}})
	require.NoError(t, err)
	b, err := i.Compiler(component.Schemas, map[string]any{"only": []string{"id"}, "wrap": "u"})
	require.NoError(t, err)
	c, err := i.Compiler(component.Schemas, nil)
	require.NoError(t, err)
	d, err := i.Compiler(component.Relations, nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, i.compilers, 3)
	assert.NotEqual(t, c.Type(), d.Type())
}

func TestInferrer_Cache(t *testing.T) {
	store := cache.NewMemory()
	i := New(WithCache(store, 0))
	src := setupSource()
	ctx := context.Background()

	_, err := i.Infer(ctx, src, Query{ID: "users"}, component.Schemas, nil)
	require.NoError(t, err)
	_, err = i.Infer(ctx, src, Query{ID: "users"}, component.Relations, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, src.lookups)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, i.Invalidate(ctx, "default"))
	_, err = i.Infer(ctx, src, Query{ID: "users"}, component.Schemas, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.lookups)
}

func TestInferrer_CorruptCacheEntryIsIgnored(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "default:users", []byte{0xc1}, 0))

	i := New(WithCache(store, 0))
	cols, err := i.Columns(ctx, setupSource(), "default", "users")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
}

func TestQuery_Normalize(t *testing.T) {
	q := Query{ID: "users"}.Normalize()
	assert.Equal(t, Query{ID: "users", Dataset: "users", Gateway: DefaultGateway}, q)
	assert.Equal(t, "users(default:users)", Query{ID: "users"}.String())
}
