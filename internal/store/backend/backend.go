// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/nazeru/phoneshop-go/internal/config"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
	"github.com/nazeru/phoneshop-go/internal/store/mongo"
	"github.com/nazeru/phoneshop-go/internal/store/postgres"
)

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close(ctx)
			return nil, err
		}
		return pg, nil
	case config.StoreMongo:
		mg, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			_ = mg.Close(ctx)
			return nil, err
		}
		return mg, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
