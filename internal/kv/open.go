package kv

import (
	"context"
	"fmt"

	"github.com/kimhsiao/gosauna/backend/internal/config"
	"github.com/kimhsiao/gosauna/backend/internal/db"
)

// Open builds the Store selected by cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "gosauna:",
		})
	case config.BackendSQLite:
		database, err := db.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return NewSQLite(database), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
