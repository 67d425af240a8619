package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

func setupTestRedis(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, DefaultPrefix), mr
}

func TestNew_ConnectsWithOptions(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	gw, err := New(context.Background(), gateway.Config{
		ID:      "cache",
		Adapter: AdapterName,
		Options: map[string]any{"addr": mr.Addr(), "prefix": "app:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", gw.Adapter())
	assert.Equal(t, "app:", gw.(*Gateway).prefix)
	require.NoError(t, gw.Disconnect())
}

func TestNew_ConnectionError(t *testing.T) {
	_, err := New(context.Background(), gateway.Config{
		ID:   "cache",
		Args: []any{"localhost:99999"},
	})
	assert.Error(t, err)
}

func TestGateway_Introspection(t *testing.T) {
	g, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, g.DefineDataset(ctx, "users",
		gateway.Column{Name: "id", Type: "integer", PrimaryKey: true},
		gateway.Column{Name: "name", Type: "string"},
	))
	require.NoError(t, g.DefineDataset(ctx, "events"))

	names, err := g.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "users"}, names)

	cols, err := g.Columns(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []gateway.Column{
		{Name: "id", Type: "integer", PrimaryKey: true},
		{Name: "name", Type: "string", Nullable: true},
	}, cols)

	cols, err = g.Columns(ctx, "events")
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = g.Columns(ctx, "missing")
	assert.ErrorIs(t, err, gateway.ErrDatasetNotFound)
}

func TestGateway_Dataset(t *testing.T) {
	g, _ := setupTestRedis(t)

	raw, err := g.Dataset(context.Background(), "users")
	require.NoError(t, err)
	ds := raw.(*Dataset)
	assert.Equal(t, "users", ds.Name)
	assert.Equal(t, "relm:data:users", ds.Key)
}
