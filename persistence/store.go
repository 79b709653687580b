// Package persistence provides durable storage for workflow executions and
// their checkpoint history.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Redis: for deployments sharing a cache tier
//   - Database: gorm-backed relational storage (postgres in production,
//     sqlite in tests)
//
// All backends satisfy workflow.ExecutionStore; checkpoints are append-only
// per execution.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the base interface for all persistent stores.
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// ExecutionFilter narrows ListExecutions results. Zero fields match
// everything.
type ExecutionFilter struct {
	ConversationID string
	UserID         string
	Status         workflow.ExecutionStatus
	Limit          int
}

// ExecutionStore is the full store surface: the engine-facing operations
// plus listing and retention housekeeping.
type ExecutionStore interface {
	workflow.ExecutionStore
	Store

	// ListExecutions retrieves executions matching the filter, most recent
	// first.
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*workflow.Execution, error)

	// Cleanup removes terminal executions (and their checkpoints) that
	// ended more than olderThan ago. Returns the number removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}
