package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "seobot", cfg.Engine.MetricsNamespace)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 24*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
store:
  type: database
  retention: 72h
database:
  host: db.internal
  port: 5433
log:
  level: debug
  format: console
telemetry:
  enabled: true
  sample_rate: 0.25
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "database", cfg.Store.Type)
	assert.Equal(t, 72*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRate)

	// Untouched sections keep their defaults.
	assert.Equal(t, "seobot", cfg.Engine.MetricsNamespace)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
store:
  type: database
redis:
  addr: yaml-redis:6379
`)

	t.Setenv("SEOBOT_STORE_TYPE", "redis")
	t.Setenv("SEOBOT_REDIS_ADDR", "env-redis:6379")
	t.Setenv("SEOBOT_REDIS_POOL_SIZE", "25")
	t.Setenv("SEOBOT_ENGINE_SHARED_CACHE_ENABLED", "true")
	t.Setenv("SEOBOT_ENGINE_SHARED_CACHE_TTL", "5m")
	t.Setenv("SEOBOT_LOG_OUTPUT_PATHS", "stdout, stderr")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
	assert.True(t, cfg.Engine.SharedCacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Engine.SharedCacheTTL)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_STORE_TYPE", "redis")
	t.Setenv("SEOBOT_STORE_TYPE", "database")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Type)
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
}

func TestLoader_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "store: [not: a: mapping")
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("SEOBOT_DATABASE_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEOBOT_DATABASE_PORT")
}

func TestLoader_Validators(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Store.Type == "memory" {
				return errors.New("memory store not allowed here")
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLogConfig_BuildLogger(t *testing.T) {
	t.Parallel()

	logger, err := LogConfig{Level: "debug", Format: "json", OutputPaths: []string{"stdout"}}.BuildLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
	_ = logger.Sync()

	// Unknown level falls back to info instead of failing.
	logger, err = LogConfig{Level: "chatty", OutputPaths: []string{"stdout"}}.BuildLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
