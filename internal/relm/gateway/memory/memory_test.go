package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

func TestNew_DeclaredDatasets(t *testing.T) {
	ctx := context.Background()

	gw, err := New(ctx, gateway.Config{
		ID:      "default",
		Adapter: AdapterName,
		Options: map[string]any{
			"datasets": map[string]any{
				"users": []any{"id", "name"},
				"tags":  nil,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "memory", gw.Adapter())

	g := gw.(*Gateway)
	names, err := g.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tags", "users"}, names)

	cols, err := g.Columns(ctx, "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, gateway.Column{Name: "id", Type: "any", PrimaryKey: true}, cols[0])
	assert.Equal(t, "name", cols[1].Name)
	assert.True(t, cols[1].Nullable)
}

func TestNew_InvalidColumns(t *testing.T) {
	_, err := New(context.Background(), gateway.Config{
		Options: map[string]any{"datasets": map[string]any{"users": []any{1}}},
	})
	assert.Error(t, err)
}

func TestGateway_ColumnsFromTuples(t *testing.T) {
	ctx := context.Background()
	g := NewGateway()

	raw, err := g.Dataset(ctx, "posts")
	require.NoError(t, err)
	ds := raw.(*Dataset)

	_, err = ds.Insert(ctx, []map[string]any{
		{"id": 1, "title": "hello", "draft": true},
		{"id": 2, "title": "world", "draft": false, "score": 1.5},
	})
	require.NoError(t, err)

	cols, err := g.Columns(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, []gateway.Column{
		{Name: "draft", Type: "boolean", Nullable: true},
		{Name: "id", Type: "integer", PrimaryKey: true},
		{Name: "score", Type: "float", Nullable: true},
		{Name: "title", Type: "string", Nullable: true},
	}, cols)

	_, err = g.Columns(ctx, "missing")
	assert.ErrorIs(t, err, gateway.ErrDatasetNotFound)
}

func TestDataset_Writes(t *testing.T) {
	ctx := context.Background()
	ds := NewGateway().CreateDataset("users")

	_, err := ds.Insert(ctx, []map[string]any{{"id": 1, "name": "Jane"}, {"id": 2, "name": "Joe"}})
	require.NoError(t, err)

	n, err := ds.Update(ctx, map[string]any{"id": 2}, map[string]any{"name": "Joseph"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ds.Delete(ctx, map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := ds.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 2, "name": "Joseph"}}, rows)
}

func TestGateway_Disconnect(t *testing.T) {
	ctx := context.Background()
	g := NewGateway()
	g.CreateDataset("users")

	require.NoError(t, g.Disconnect())

	names, err := g.Datasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = g.Dataset(ctx, "users")
	assert.ErrorIs(t, err, gateway.ErrDisconnected)
}
