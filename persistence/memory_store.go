package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/types"
	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// MemoryStore is an in-memory ExecutionStore. Suitable for development and
// testing; data is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	executions  map[string]*workflow.Execution
	checkpoints map[string][]*workflow.Checkpoint
	closed      bool
	logger      *zap.Logger
}

// NewMemoryStore creates an in-memory execution store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		executions:  make(map[string]*workflow.Execution),
		checkpoints: make(map[string][]*workflow.Checkpoint),
		logger:      logger.With(zap.String("component", "memory_store")),
	}
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveExecution upserts an execution record.
func (s *MemoryStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	if execution == nil || execution.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.executions[execution.ID] = execution
	return nil
}

// LoadExecution fetches the latest persisted record for an execution.
func (s *MemoryStore) LoadExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	execution, ok := s.executions[executionID]
	if !ok {
		return nil, types.NewError(types.ErrExecutionNotFound, "execution "+executionID).WithCause(ErrNotFound)
	}
	cp := *execution
	return &cp, nil
}

// SaveCheckpoint appends a checkpoint to the execution's history.
func (s *MemoryStore) SaveCheckpoint(ctx context.Context, checkpoint *workflow.Checkpoint) error {
	if checkpoint == nil || checkpoint.ExecutionID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.checkpoints[checkpoint.ExecutionID] = append(s.checkpoints[checkpoint.ExecutionID], checkpoint)
	return nil
}

// ListCheckpoints returns an execution's checkpoints in creation order.
func (s *MemoryStore) ListCheckpoints(ctx context.Context, executionID string) ([]*workflow.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	stored := s.checkpoints[executionID]
	out := make([]*workflow.Checkpoint, len(stored))
	copy(out, stored)
	return out, nil
}

// ListExecutions retrieves executions matching the filter, most recent
// first.
func (s *MemoryStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []*workflow.Execution
	for _, e := range s.executions {
		if !matchesFilter(e, filter) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Cleanup removes terminal executions older than the retention window.
func (s *MemoryStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for id, e := range s.executions {
		if e.Status.IsTerminal() && !e.EndTime.IsZero() && e.EndTime.Before(cutoff) {
			delete(s.executions, id)
			delete(s.checkpoints, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cleaned up executions", zap.Int("removed", removed))
	}
	return removed, nil
}

func matchesFilter(e *workflow.Execution, filter ExecutionFilter) bool {
	if filter.ConversationID != "" && e.ConversationID != filter.ConversationID {
		return false
	}
	if filter.UserID != "" && e.UserID != filter.UserID {
		return false
	}
	if filter.Status != "" && e.Status != filter.Status {
		return false
	}
	return true
}
