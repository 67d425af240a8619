package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/gateway/memory"
	"github.com/conduit-lang/relm/internal/relm/schema"
)

func setupUsers(t *testing.T) *Relation {
	t.Helper()

	gw := memory.NewGateway()
	ds := gw.CreateDataset("users")
	_, err := ds.Insert(context.Background(), []map[string]any{
		{"id": 1, "name": "Jane", "email": "jane@example.com"},
		{"id": 2, "name": "Joe", "email": "joe@example.com"},
	})
	require.NoError(t, err)

	s, err := schema.New("users",
		schema.Attribute{Name: "id", Type: "integer", PrimaryKey: true},
		schema.Attribute{Name: "name", Type: "string"},
	)
	require.NoError(t, err)

	return &Relation{
		Name:        "users",
		GatewayID:   "default",
		Gateway:     gw,
		DatasetName: "users",
		Dataset:     ds,
		Schema:      s,
	}
}

func TestRelation_All(t *testing.T) {
	users := setupUsers(t)

	rows, err := users.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": 1, "name": "Jane"},
		{"id": 2, "name": "Joe"},
	}, rows)
	assert.Equal(t, "memory", users.Adapter())
}

func TestRelation_AllWrapped(t *testing.T) {
	users := setupUsers(t)
	users.Schema = users.Schema.Wrapped("users")

	rows, err := users.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"users_id": 1, "users_name": "Jane"}, rows[0])
}

func TestRelation_NotReadable(t *testing.T) {
	r := &Relation{Name: "logs", Dataset: "raw"}

	_, err := r.All(context.Background())
	assert.ErrorIs(t, err, ErrNotReadable)
}

func TestRelation_Association(t *testing.T) {
	users := setupUsers(t)
	users.Associations = []*Association{{Source: "users", Name: "posts", As: "articles", Target: "posts", Kind: OneToMany}}

	a, ok := users.Association("posts")
	require.True(t, ok)
	assert.Equal(t, "users.articles", a.Key())

	b, ok := users.Association("articles")
	require.True(t, ok)
	assert.Same(t, a, b)

	_, ok = users.Association("tags")
	assert.False(t, ok)
}

func TestMapper_Call(t *testing.T) {
	m := &Mapper{
		ID:       "entity",
		Relation: "users",
		Rename:   map[string]string{"name": "full_name"},
		Only:     []string{"id", "full_name"},
	}
	in := []map[string]any{{"id": 1, "name": "Jane", "email": "jane@example.com"}}

	out := m.Call(in)
	assert.Equal(t, []map[string]any{{"id": 1, "full_name": "Jane"}}, out)
	assert.Equal(t, "Jane", in[0]["name"])
}

func TestCommand_Create(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	cmd, err := NewCommand("create", users, Create, ResultOne)
	require.NoError(t, err)

	out, err := cmd.Call(ctx, Input{Tuples: []map[string]any{{"id": 3, "name": "Ann"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Affected)

	rows, err := users.All(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = cmd.Call(ctx, Input{})
	assert.Error(t, err)
}

func TestCommand_UpdateDelete(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	update, err := NewCommand("update", users, Update, "")
	require.NoError(t, err)
	assert.Equal(t, ResultMany, update.Result)

	out, err := update.Call(ctx, Input{Match: map[string]any{"id": 1}, Changes: map[string]any{"name": "Janet"}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Affected)

	del, err := NewCommand("delete", users, Delete, ResultOne)
	require.NoError(t, err)
	out, err = del.Call(ctx, Input{Match: map[string]any{"id": 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Affected)

	rows, err := users.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 1, "name": "Janet"}}, rows)
}

func TestNewCommand_Invalid(t *testing.T) {
	_, err := NewCommand("x", nil, "upsert", "")
	assert.Error(t, err)

	_, err = NewCommand("x", nil, Create, "several")
	assert.Error(t, err)
}

func TestCommand_NotWritable(t *testing.T) {
	cmd, err := NewCommand("create", &Relation{Name: "logs", Dataset: "raw"}, Create, "")
	require.NoError(t, err)

	_, err = cmd.Call(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrNotWritable)
}
