package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/types"
	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// RedisStore is a redis-backed ExecutionStore. Execution records live in
// plain keys, checkpoints in per-execution lists (RPUSH keeps them
// append-only and ordered), and a sorted set indexed by start time supports
// listing and retention cleanup.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a store over an externally constructed client.
// Close closes the client; the caller hands over ownership.
func NewRedisStore(client *redis.Client, keyPrefix string, logger *zap.Logger) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if keyPrefix == "" {
		keyPrefix = "seobot:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "execution:",
		logger:    logger.With(zap.String("component", "redis_store")),
	}, nil
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) executionKey(id string) string   { return s.keyPrefix + "data:" + id }
func (s *RedisStore) checkpointsKey(id string) string { return s.keyPrefix + "ckpt:" + id }
func (s *RedisStore) allKey() string                  { return s.keyPrefix + "all" }

// SaveExecution upserts an execution record.
func (s *RedisStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	if execution == nil || execution.ID == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.executionKey(execution.ID), data, 0)
	pipe.ZAdd(ctx, s.allKey(), redis.Z{
		Score:  float64(execution.StartTime.UnixNano()),
		Member: execution.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// LoadExecution fetches the latest persisted record for an execution.
func (s *RedisStore) LoadExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	data, err := s.client.Get(ctx, s.executionKey(executionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.NewError(types.ErrExecutionNotFound, "execution "+executionID).WithCause(ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var execution workflow.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &execution, nil
}

// SaveCheckpoint appends a checkpoint to the execution's history.
func (s *RedisStore) SaveCheckpoint(ctx context.Context, checkpoint *workflow.Checkpoint) error {
	if checkpoint == nil || checkpoint.ExecutionID == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return s.client.RPush(ctx, s.checkpointsKey(checkpoint.ExecutionID), data).Err()
}

// ListCheckpoints returns an execution's checkpoints in creation order.
func (s *RedisStore) ListCheckpoints(ctx context.Context, executionID string) ([]*workflow.Checkpoint, error) {
	raw, err := s.client.LRange(ctx, s.checkpointsKey(executionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*workflow.Checkpoint, 0, len(raw))
	for _, item := range raw {
		var cp workflow.Checkpoint
		if err := json.Unmarshal([]byte(item), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		out = append(out, &cp)
	}
	return out, nil
}

// ListExecutions retrieves executions matching the filter, most recent
// first.
func (s *RedisStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*workflow.Execution, error) {
	ids, err := s.client.ZRevRange(ctx, s.allKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var out []*workflow.Execution
	for _, id := range ids {
		execution, err := s.LoadExecution(ctx, id)
		if err != nil {
			if types.GetErrorCode(err) == types.ErrExecutionNotFound {
				continue // index entry outlived the data key
			}
			return nil, err
		}
		if !matchesFilter(execution, filter) {
			continue
		}
		out = append(out, execution)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Cleanup removes terminal executions older than the retention window.
func (s *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	max := strconv.FormatInt(cutoff.UnixNano(), 10)

	ids, err := s.client.ZRangeByScore(ctx, s.allKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		execution, err := s.LoadExecution(ctx, id)
		if err != nil {
			if types.GetErrorCode(err) == types.ErrExecutionNotFound {
				s.client.ZRem(ctx, s.allKey(), id)
				continue
			}
			return removed, err
		}
		if !execution.Status.IsTerminal() || execution.EndTime.IsZero() || !execution.EndTime.Before(cutoff) {
			continue
		}

		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.executionKey(id), s.checkpointsKey(id))
		pipe.ZRem(ctx, s.allKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("cleaned up executions", zap.Int("removed", removed))
	}
	return removed, nil
}
