package cache

import (
	"context"

	"go.uber.org/zap"
)

// ToolResultCache adapts a Manager to the engine's shared tool cache
// interface. Cached third-party tool responses are reused across
// executions until their TTL expires; a redis outage degrades to cache
// misses rather than failing the run.
type ToolResultCache struct {
	manager *Manager
	logger  *zap.Logger
}

// NewToolResultCache wraps a cache manager.
func NewToolResultCache(manager *Manager, logger *zap.Logger) *ToolResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolResultCache{
		manager: manager,
		logger:  logger.With(zap.String("component", "tool_cache")),
	}
}

// Get fetches a cached tool result.
func (c *ToolResultCache) Get(ctx context.Context, key string) (any, bool) {
	var value any
	err := c.manager.GetJSON(ctx, "tool:"+key, &value)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("tool cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Set stores a tool result under the manager's default TTL.
func (c *ToolResultCache) Set(ctx context.Context, key string, value any) {
	if err := c.manager.SetJSON(ctx, "tool:"+key, value); err != nil {
		c.logger.Warn("tool cache set failed", zap.String("key", key), zap.Error(err))
	}
}
