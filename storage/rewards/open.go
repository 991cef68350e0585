package rewards

import (
	"context"
	"fmt"

	"rewards-backend/config"
	"rewards-backend/core/rewards"
)

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (rewards.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPGStore(ctx, cfg.PGDSN)
	case "pebble":
		return NewPebbleStore(cfg.PebblePath, PebbleOptions{Compress: cfg.PebbleCompress})
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
