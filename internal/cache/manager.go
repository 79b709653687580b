// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/config"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether an error is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Manager wraps a go-redis client with JSON serialization, a default TTL,
// and lifecycle management.
type Manager struct {
	redis      *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewManager connects to redis and starts the health check loop.
func NewManager(cfg config.RedisConfig, keyPrefix string, defaultTTL time.Duration, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		redis:      client,
		defaultTTL: defaultTTL,
		keyPrefix:  keyPrefix,
		logger:     logger.With(zap.String("component", "cache")),
		done:       make(chan struct{}),
	}
	go m.healthCheckLoop(30 * time.Second)
	return m, nil
}

// GetJSON fetches a key and unmarshals it into dest. Returns ErrCacheMiss
// when the key is absent.
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := m.redis.Get(ctx, m.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals a value and stores it under the default TTL.
func (m *Manager) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.Set(ctx, m.keyPrefix+key, data, m.defaultTTL).Err()
}

// Delete removes a key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.redis.Del(ctx, m.keyPrefix+key).Err()
}

// Ping checks connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errors.New("cache is closed")
	}
	return m.redis.Ping(ctx).Err()
}

// Close stops the health check loop and releases the connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return m.redis.Close()
}

func (m *Manager) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.Ping(ctx); err != nil {
				m.logger.Warn("cache health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}
