// Package adapters registers the built-in gateway adapters.
package adapters

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/gateway/memory"
	"github.com/conduit-lang/relm/internal/relm/gateway/redis"
	"github.com/conduit-lang/relm/internal/relm/gateway/sql"
)

// Register adds the memory, sql and redis adapters to table:
//   - memory: in-process datasets
//   - sql: sqlite3, postgres (pgx or lib/pq) and mysql through database/sql
//   - redis: datasets described by Redis sets and hashes
func Register(table *gateway.Adapters) error {
	if table == nil {
		return errors.New("adapter table cannot be nil")
	}

	builtin := []struct {
		name    string
		factory gateway.Factory
	}{
		{memory.AdapterName, memory.New},
		{sql.AdapterName, sql.New},
		{redis.AdapterName, redis.New},
	}
	for _, a := range builtin {
		if err := table.Register(a.name, a.factory); err != nil {
			return fmt.Errorf("failed to register %s adapter: %w", a.name, err)
		}
	}
	return nil
}

// Default returns a table holding the built-in adapters
func Default() *gateway.Adapters {
	table := gateway.NewAdapters()
	if err := Register(table); err != nil {
		panic(err)
	}
	return table
}
