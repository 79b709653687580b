package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CheckpointType tags why a checkpoint was taken.
type CheckpointType string

const (
	// CheckpointStepStart is written before a step begins executing.
	CheckpointStepStart CheckpointType = "step_start"
	// CheckpointErrorRecovery is written after a step failure and carries
	// only the last-known-good (completed) step results.
	CheckpointErrorRecovery CheckpointType = "error_recovery"
	// CheckpointFinal is written once the execution reaches a terminal
	// status.
	CheckpointFinal CheckpointType = "final"
)

// Checkpoint is a durable snapshot of execution progress. Checkpoints are
// append-only per execution; the store never overwrites prior entries.
type Checkpoint struct {
	ID             string                 `json:"id"`
	ExecutionID    string                 `json:"execution_id"`
	Type           CheckpointType         `json:"type"`
	StepID         string                 `json:"step_id,omitempty"`
	CompletedSteps []string               `json:"completed_steps,omitempty"`
	StepResults    map[string]*StepResult `json:"step_results,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ExecutionStore is the persistence capability the engine consumes. Any
// durable key-value or relational store satisfying these operations is
// substitutable; implementations live in the persistence package.
type ExecutionStore interface {
	// SaveExecution upserts the full execution record.
	SaveExecution(ctx context.Context, execution *Execution) error
	// LoadExecution fetches the latest persisted record for an execution ID.
	LoadExecution(ctx context.Context, executionID string) (*Execution, error)
	// SaveCheckpoint appends a checkpoint to the execution's history.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error
	// ListCheckpoints returns an execution's checkpoints in creation order.
	ListCheckpoints(ctx context.Context, executionID string) ([]*Checkpoint, error)
}

// NewCheckpoint builds a checkpoint snapshot from the given step results.
// When completedOnly is set, only completed results are captured (the
// error_recovery shape); otherwise every recorded result is included.
func NewCheckpoint(executionID string, cpType CheckpointType, stepID string, results map[string]*StepResult, completedOnly bool) *Checkpoint {
	cp := &Checkpoint{
		ID:          fmt.Sprintf("ckpt_%s", uuid.New().String()),
		ExecutionID: executionID,
		Type:        cpType,
		StepID:      stepID,
		StepResults: make(map[string]*StepResult, len(results)),
		CreatedAt:   time.Now(),
	}
	for id, r := range results {
		if r.Status == StepStatusCompleted {
			cp.CompletedSteps = append(cp.CompletedSteps, id)
		} else if completedOnly {
			continue
		}
		cp.StepResults[id] = r.Clone()
	}
	return cp
}
