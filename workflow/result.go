package workflow

import "time"

// StepStatus is the lifecycle state of a single step within one execution.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates a required tool of the step failed.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the step was never executed, either
	// because a dependency did not complete or because a fatal failure
	// upstream ended the run before the step was reached.
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal returns true if the status is a terminal state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// ExecutionStatus is the lifecycle state of a whole workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ToolResult records the outcome of one tool invocation within a step.
type ToolResult struct {
	Success  bool          `json:"success"`
	Data     any           `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Cached   bool          `json:"cached,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StepResult records the outcome of one step. Once the status reaches a
// terminal state the result is never mutated again.
type StepResult struct {
	StepID      string                `json:"step_id"`
	Status      StepStatus            `json:"status"`
	Data        any                   `json:"data,omitempty"`
	ToolResults map[string]ToolResult `json:"tool_results,omitempty"`
	Error       string                `json:"error,omitempty"`
	StartTime   time.Time             `json:"start_time,omitempty"`
	EndTime     time.Time             `json:"end_time,omitempty"`
	Duration    time.Duration         `json:"duration,omitempty"`
}

// Clone returns a shallow copy with its own ToolResults map.
func (r *StepResult) Clone() *StepResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ToolResults != nil {
		cp.ToolResults = make(map[string]ToolResult, len(r.ToolResults))
		for k, v := range r.ToolResults {
			cp.ToolResults[k] = v
		}
	}
	return &cp
}

// Execution is the durable record of one workflow run. It is owned
// exclusively by the engine run that created it and written incrementally
// to the persistence layer as steps complete.
type Execution struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Status         ExecutionStatus `json:"status"`
	StepResults    []*StepResult   `json:"step_results"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CheckpointData map[string]any  `json:"checkpoint_data,omitempty"`
}

// StepResult returns the recorded result for a step ID, if any.
func (e *Execution) StepResult(stepID string) (*StepResult, bool) {
	for _, r := range e.StepResults {
		if r.StepID == stepID {
			return r, true
		}
	}
	return nil, false
}

// CompletedSteps returns the IDs of all completed steps, in record order.
func (e *Execution) CompletedSteps() []string {
	var out []string
	for _, r := range e.StepResults {
		if r.Status == StepStatusCompleted {
			out = append(out, r.StepID)
		}
	}
	return out
}
