package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relm/internal/relm/gateway"
)

func TestRegister(t *testing.T) {
	table := gateway.NewAdapters()
	require.NoError(t, Register(table))
	assert.Equal(t, []string{"memory", "redis", "sql"}, table.Names())

	err := Register(table)
	assert.Error(t, err)

	assert.Error(t, Register(nil))
}

func TestDefault(t *testing.T) {
	table := Default()

	_, err := table.Load("memory")
	require.NoError(t, err)

	_, err = table.Load("http")
	assert.True(t, gateway.IsAdapterLoadError(err))
}
