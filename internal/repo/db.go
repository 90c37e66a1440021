package repo

import (
	"context"
	"fmt"

	"github.com/xxxsen/mauth/internal/config"
	"github.com/xxxsen/mauth/internal/db"
)

// Open builds the configured user store and prepares its schema or indexes.
func Open(ctx context.Context, cfg config.StoreConfig) (UserStore, error) {
	switch cfg.Type {
	case config.StoreMongo:
		client, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		store := NewMongoUserStore(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		conn, err := db.OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return NewPGUserStore(conn), nil
	case config.StoreMemory:
		return NewMemoryUserStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
