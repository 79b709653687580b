package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/config"
)

func TestNewExecutionStore_Memory(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	store, err := NewExecutionStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &MemoryStore{}, store)

	cfg.Store.Type = ""
	store2, err := NewExecutionStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store2.Close()
	assert.IsType(t, &MemoryStore{}, store2)
}

func TestNewExecutionStore_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Store.Type = "redis"
	cfg.Redis.Addr = mr.Addr()

	store, err := NewExecutionStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &RedisStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewExecutionStore_Database(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Store.Type = "database"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = ":memory:"

	store, err := NewExecutionStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &GormStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewExecutionStore_Unsupported(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Store.Type = "mongodb"
	_, err := NewExecutionStore(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store type")
}
