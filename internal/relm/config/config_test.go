package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetGet(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("gateways.default.adapter", "memory"))
	require.NoError(t, c.Set("inflector", "default"))

	assert.Equal(t, "memory", c.String("gateways.default.adapter"))
	assert.Equal(t, "default", c.String("inflector"))
	assert.True(t, c.Has("gateways.default"))
	assert.False(t, c.Has("gateways.other"))

	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestConfig_SubSharesTree(t *testing.T) {
	c := New()
	gateways := c.Sub("gateways")

	require.NoError(t, gateways.Set("other.adapter", "sql"))

	assert.Equal(t, "sql", c.String("gateways.other.adapter"))
	assert.Equal(t, []string{"other"}, gateways.Keys())
	assert.Equal(t, "gateways", gateways.Path())
}

func TestConfig_FromMap(t *testing.T) {
	c, err := FromMap(map[string]any{
		"gateways": map[string]any{
			"default": map[string]any{"adapter": "memory"},
			"other":   map[string]any{"adapter": "sql", "args": []any{"sqlite::memory"}},
		},
		"auto_register": map[string]any{"namespace": true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"auto_register", "gateways"}, c.Keys())
	assert.Equal(t, []string{"default", "other"}, c.Sub("gateways").Keys())
	assert.True(t, c.Bool("auto_register.namespace"))
	assert.Equal(t, []string{"sqlite::memory"}, c.Strings("gateways.other.args"))
}

func TestConfig_Freeze(t *testing.T) {
	c := New()
	sub := c.Sub("plugins")
	require.NoError(t, c.Set("a", 1))

	c.Freeze()

	assert.True(t, sub.Frozen())
	assert.ErrorIs(t, c.Set("a", 2), ErrFrozen)
	assert.ErrorIs(t, sub.Set("timestamps", true), ErrFrozen)
	assert.ErrorIs(t, c.Merge(map[string]any{"b": 1}), ErrFrozen)

	v, _ := c.Get("a")
	assert.Equal(t, 1, v)
}

func TestConfig_SetDefault(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("auto_register.namespace", false))
	require.NoError(t, c.SetDefault("auto_register.namespace", true))
	require.NoError(t, c.SetDefault("auto_register.root_directory", ""))

	assert.False(t, c.Bool("auto_register.namespace"))
	assert.True(t, c.Has("auto_register.root_directory"))
}

func TestConfig_Each(t *testing.T) {
	c, err := FromMap(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)

	var keys []string
	require.NoError(t, c.Each(func(key string, _ any) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestConfig_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relm.yml")
	content := `
gateways:
  default:
    adapter: memory
auto_register:
  root_directory: ./components
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := New()
	require.NoError(t, c.Set("auto_register.namespace", true))
	require.NoError(t, c.Load(path))

	assert.Equal(t, "memory", c.String("gateways.default.adapter"))
	assert.Equal(t, "./components", c.String("auto_register.root_directory"))
	assert.True(t, c.Bool("auto_register.namespace"))

	assert.Error(t, c.Load(filepath.Join(dir, "missing.yml")))
}
