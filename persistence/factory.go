package persistence

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/config"
	"github.com/sodown4thecause/seobot-sub008/internal/database"
)

// NewExecutionStore creates an execution store for the configured backend.
// The returned store owns its backend connections; callers must Close it
// at shutdown.
func NewExecutionStore(cfg *config.Config, logger *zap.Logger) (ExecutionStore, error) {
	switch cfg.Store.Type {
	case "", "memory":
		return NewMemoryStore(logger), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		return NewRedisStore(client, cfg.Store.KeyPrefix, logger)

	case "database":
		db, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, logger)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
