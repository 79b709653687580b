package workflow

import (
	"context"

	"go.uber.org/zap"
)

// RecoveryDecision reports whether a previously failed or interrupted
// execution can be resumed, and from where.
type RecoveryDecision struct {
	CanRecover         bool     `json:"can_recover"`
	LastSuccessfulStep string   `json:"last_successful_step,omitempty"`
	CompletedSteps     []string `json:"completed_steps,omitempty"`
}

// RecoveryService inspects persisted executions to determine resumability.
// A caller acts on a positive decision by re-running the engine with
// WithCompletedResults seeded from the old execution.
type RecoveryService struct {
	store  ExecutionStore
	logger *zap.Logger
}

// NewRecoveryService creates a recovery service over an execution store.
func NewRecoveryService(store ExecutionStore, logger *zap.Logger) *RecoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryService{
		store:  store,
		logger: logger.With(zap.String("component", "recovery_service")),
	}
}

// RecoverExecution loads an execution record and scans its step results for
// the longest prefix of completed steps. At least one completed step makes
// the execution recoverable; zero means it must be restarted from scratch.
func (s *RecoveryService) RecoverExecution(ctx context.Context, executionID string) (*RecoveryDecision, error) {
	execution, err := s.store.LoadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	decision := &RecoveryDecision{}
	for _, r := range execution.StepResults {
		if r.Status != StepStatusCompleted {
			break
		}
		decision.CompletedSteps = append(decision.CompletedSteps, r.StepID)
		decision.LastSuccessfulStep = r.StepID
	}
	decision.CanRecover = len(decision.CompletedSteps) > 0

	s.logger.Info("recovery decision",
		zap.String("execution_id", executionID),
		zap.Bool("can_recover", decision.CanRecover),
		zap.String("last_successful_step", decision.LastSuccessfulStep),
	)
	return decision, nil
}

// CompletedResults extracts the completed step results of an execution,
// keyed by step ID, in the shape WithCompletedResults expects.
func (s *RecoveryService) CompletedResults(ctx context.Context, executionID string) (map[string]*StepResult, error) {
	execution, err := s.store.LoadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*StepResult)
	for _, r := range execution.StepResults {
		if r.Status == StepStatusCompleted {
			out[r.StepID] = r.Clone()
		}
	}
	return out, nil
}
