package store

import (
	"context"
	"fmt"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/db"
)

// Open builds the driver selected by cfg.Backend. The caller owns the driver
// and must Close it.
func Open(ctx context.Context, cfg *config.StoreConfig) (Driver, error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		return NewPostgRESTDriver(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.Schema, cfg.Supabase.Timeout)
	case config.BackendPostgres:
		conn, err := db.Connect(ctx, cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
		if err != nil {
			return nil, err
		}
		return NewPostgresDriver(conn), nil
	case config.BackendMemory:
		return NewMemoryDriver(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
