package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sodown4thecause/seobot-sub008/internal/metrics"
	"github.com/sodown4thecause/seobot-sub008/types"
)

// ToolCache is an optional cache shared across executions, consulted after
// the per-execution memoization cache. Implementations live outside this
// package (see internal/cache).
type ToolCache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any)
}

// Engine executes a Workflow against a Context, respecting step
// dependencies, and produces an Execution with one StepResult per
// definition step.
//
// Each call to Execute produces a fresh execution with a new ID. An Engine
// and its Context belong together; do not run two executions over the same
// Context concurrently.
type Engine struct {
	wf     *Workflow
	wctx   *Context
	tools  ToolExecutor
	store  ExecutionStore
	logger *zap.Logger

	collector *metrics.Collector
	tracer    trace.Tracer
	shared    ToolCache

	conversationID string
	userID         string
	prior          map[string]*StepResult

	mu      sync.Mutex
	exec    *Execution
	results map[string]*StepResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.collector = collector }
}

// WithTracer attaches an OTel tracer; a span is opened per execution and
// per step.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithToolCache attaches a cache shared across executions.
func WithToolCache(cache ToolCache) Option {
	return func(e *Engine) { e.shared = cache }
}

// WithConversation attaches the owning conversation and user.
func WithConversation(conversationID, userID string) Option {
	return func(e *Engine) {
		e.conversationID = conversationID
		e.userID = userID
	}
}

// WithCompletedResults seeds the run with step results from an earlier
// failed execution. Seeded completed steps are treated as already satisfied
// and are not re-executed; non-completed entries are ignored.
func WithCompletedResults(results map[string]*StepResult) Option {
	return func(e *Engine) { e.prior = results }
}

// NewEngine creates an engine for one workflow and context. The store may
// be nil, in which case the run is not persisted and recovery is
// unavailable.
func NewEngine(wf *Workflow, wctx *Context, tools ToolExecutor, store ExecutionStore, opts ...Option) *Engine {
	e := &Engine{
		wf:     wf,
		wctx:   wctx,
		tools:  tools,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"))
	return e
}

// Execute runs the workflow to completion or first fatal failure.
//
// A failed step yields a returned Execution with status failed, not an
// error; only unexpected conditions (invalid definition, canceled context)
// surface as errors.
func (e *Engine) Execute(ctx context.Context) (*Execution, error) {
	if e.wf == nil {
		return nil, types.NewError(types.ErrInvalidWorkflow, "workflow is nil")
	}
	if err := e.wf.Validate(); err != nil {
		return nil, err
	}
	if e.tools == nil {
		return nil, types.NewError(types.ErrInvalidWorkflow, "tool executor is nil")
	}
	if e.wctx == nil {
		e.wctx = NewContext("")
	}

	e.mu.Lock()
	e.results = make(map[string]*StepResult, len(e.wf.Steps))
	e.exec = &Execution{
		ID:             uuid.New().String(),
		WorkflowID:     e.wf.ID,
		ConversationID: e.conversationID,
		UserID:         e.userID,
		Status:         ExecutionStatusRunning,
		StartTime:      time.Now(),
	}
	executionID := e.exec.ID
	for id, r := range e.prior {
		if r == nil || r.Status != StepStatusCompleted || !e.wf.HasStep(id) {
			continue
		}
		e.results[id] = r.Clone()
	}
	e.mu.Unlock()
	for id, r := range e.prior {
		if r != nil && r.Status == StepStatusCompleted && e.wf.HasStep(id) {
			e.wctx.SetStepResult(id, r.Data)
		}
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "workflow.execute",
			trace.WithAttributes(
				attribute.String("workflow.id", e.wf.ID),
				attribute.String("execution.id", executionID),
			))
		defer span.End()
	}

	e.logger.Info("starting workflow execution",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", e.wf.ID),
		zap.Int("steps", len(e.wf.Steps)),
	)

	e.saveExecution(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil, e.finishCanceled(ctx)
		default:
		}

		newlySkipped := e.propagateSkips()
		ready := e.readySteps()

		if len(ready) == 0 {
			if e.allTerminal() {
				break
			}
			if newlySkipped == 0 {
				// No step is ready and none can become ready: the
				// remaining steps form a dependency cycle. Skip them and
				// finish rather than raising a distinct error.
				e.skipRemaining("dependencies never became ready")
				break
			}
			continue
		}

		if ready[0].Parallel {
			group := parallelGroup(ready)
			g, gctx := errgroup.WithContext(ctx)
			for _, step := range group {
				step := step
				g.Go(func() error {
					e.runStep(gctx, step)
					return nil
				})
			}
			_ = g.Wait()
		} else {
			// Sequential steps run one at a time, in declaration order,
			// with persistence completing before the next begins.
			e.runStep(ctx, ready[0])
		}

		if failed := e.firstFailure(); failed != nil {
			return e.finishFailed(ctx, failed), nil
		}
	}

	return e.finishCompleted(ctx), nil
}

// parallelGroup filters the parallel-flagged steps out of a ready set.
// Ready steps are mutually independent already: a step is ready only once
// all of its dependencies are completed.
func parallelGroup(ready []*Step) []*Step {
	var group []*Step
	for _, step := range ready {
		if step.Parallel {
			group = append(group, step)
		}
	}
	return group
}

// readySteps returns, in declaration order, the steps with no recorded
// result whose dependencies have all completed.
func (e *Engine) readySteps() []*Step {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ready []*Step
	for i := range e.wf.Steps {
		step := &e.wf.Steps[i]
		if _, attempted := e.results[step.ID]; attempted {
			continue
		}
		ok := true
		for _, dep := range step.Dependencies {
			r, exists := e.results[dep]
			if !exists || r.Status != StepStatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		}
	}
	return ready
}

// propagateSkips marks steps whose dependencies can no longer complete as
// skipped, iterating to a fixed point so skips propagate transitively.
// Returns the number of steps newly skipped.
func (e *Engine) propagateSkips() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for changed := true; changed; {
		changed = false
		for i := range e.wf.Steps {
			step := &e.wf.Steps[i]
			if _, attempted := e.results[step.ID]; attempted {
				continue
			}
			for _, dep := range step.Dependencies {
				if !e.wf.HasStep(dep) {
					e.markSkippedLocked(step.ID, fmt.Sprintf("dependency %q does not exist", dep))
					changed = true
					total++
					break
				}
				if r, ok := e.results[dep]; ok && (r.Status == StepStatusFailed || r.Status == StepStatusSkipped) {
					e.markSkippedLocked(step.ID, fmt.Sprintf("dependency %q was %s", dep, r.Status))
					changed = true
					total++
					break
				}
			}
		}
	}
	return total
}

// skipRemaining force-skips every step without a recorded result.
func (e *Engine) skipRemaining(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.wf.Steps {
		step := &e.wf.Steps[i]
		if _, attempted := e.results[step.ID]; !attempted {
			e.markSkippedLocked(step.ID, reason)
		}
	}
}

func (e *Engine) markSkippedLocked(stepID, reason string) {
	e.results[stepID] = &StepResult{
		StepID: stepID,
		Status: StepStatusSkipped,
		Error:  reason,
	}
	e.logger.Debug("step skipped",
		zap.String("step_id", stepID),
		zap.String("reason", reason),
	)
	e.collector.RecordStep(e.wf.ID, stepID, string(StepStatusSkipped), 0)
}

func (e *Engine) allTerminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.wf.Steps {
		r, ok := e.results[e.wf.Steps[i].ID]
		if !ok || !r.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (e *Engine) firstFailure() *StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.wf.Steps {
		if r, ok := e.results[e.wf.Steps[i].ID]; ok && r.Status == StepStatusFailed {
			return r
		}
	}
	return nil
}

// runStep executes a single step: step_start checkpoint, tools in declared
// order, result recording, and an execution save. Tool calls within a step
// are never parallel; the parallel flag applies across steps only.
func (e *Engine) runStep(ctx context.Context, step *Step) {
	e.saveCheckpoint(ctx, CheckpointStepStart, step.ID, false)

	res := &StepResult{
		StepID:      step.ID,
		Status:      StepStatusRunning,
		StartTime:   time.Now(),
		ToolResults: make(map[string]ToolResult, len(step.Tools)),
	}

	e.mu.Lock()
	if prev, ok := e.results[step.ID]; ok && prev.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	e.results[step.ID] = res
	e.mu.Unlock()

	e.logger.Info("executing step",
		zap.String("step_id", step.ID),
		zap.String("agent", step.Agent),
		zap.Int("tools", len(step.Tools)),
	)

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "workflow.step",
			trace.WithAttributes(attribute.String("step.id", step.ID)))
		defer span.End()
	}

	data := make(map[string]any, len(step.Tools))
	var failMsg string

	for _, inv := range step.Tools {
		tr := e.invokeTool(ctx, inv)
		e.mu.Lock()
		res.ToolResults[inv.Name] = tr
		e.mu.Unlock()

		if !tr.Success {
			if inv.Required {
				failMsg = fmt.Sprintf("required tool %q failed: %s", inv.Name, tr.Error)
				break
			}
			e.logger.Warn("optional tool failed, continuing",
				zap.String("step_id", step.ID),
				zap.String("tool", inv.Name),
				zap.String("error", tr.Error),
			)
			continue
		}
		data[inv.Name] = tr.Data
	}

	end := time.Now()
	e.mu.Lock()
	res.EndTime = end
	res.Duration = end.Sub(res.StartTime)
	if failMsg != "" {
		res.Status = StepStatusFailed
		res.Error = failMsg
	} else {
		res.Status = StepStatusCompleted
		res.Data = stepData(data)
	}
	status := res.Status
	stepResultData := res.Data
	duration := res.Duration
	e.mu.Unlock()

	if status == StepStatusCompleted {
		e.wctx.SetStepResult(step.ID, stepResultData)
	}

	e.logger.Info("step finished",
		zap.String("step_id", step.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", duration),
	)
	e.collector.RecordStep(e.wf.ID, step.ID, string(status), duration)

	e.saveExecution(ctx)
}

// stepData flattens a step's successful tool outputs: a single tool's
// output stands alone, multiple outputs stay keyed by tool name.
func stepData(outputs map[string]any) any {
	switch len(outputs) {
	case 0:
		return nil
	case 1:
		for _, v := range outputs {
			return v
		}
	}
	return outputs
}

// invokeTool resolves params, consults the per-execution cache then the
// shared cache, and finally calls the tool executor.
func (e *Engine) invokeTool(ctx context.Context, inv ToolInvocation) ToolResult {
	params := interpolateParams(inv.Params, e.wctx)
	key := ToolCacheKey(inv.Name, params)

	if v, ok := e.wctx.CacheGet(key); ok {
		e.collector.RecordCacheHit("execution")
		return ToolResult{Success: true, Data: v, Cached: true}
	}
	if e.shared != nil {
		if v, ok := e.shared.Get(ctx, key); ok {
			e.wctx.CacheSet(key, v)
			e.collector.RecordCacheHit("shared")
			return ToolResult{Success: true, Data: v, Cached: true}
		}
	}
	e.collector.RecordCacheMiss()

	start := time.Now()
	out, err := e.tools.ExecuteTool(ctx, inv.Name, params)
	elapsed := time.Since(start)

	if err != nil {
		e.collector.RecordToolCall(inv.Name, "error", elapsed)
		return ToolResult{Success: false, Error: err.Error(), Duration: elapsed}
	}
	if !out.Success {
		e.collector.RecordToolCall(inv.Name, "failed", elapsed)
		return ToolResult{Success: false, Error: out.Error, Duration: elapsed}
	}

	e.wctx.CacheSet(key, out.Data)
	if e.shared != nil {
		e.shared.Set(ctx, key, out.Data)
	}
	e.collector.RecordToolCall(inv.Name, "success", elapsed)
	return ToolResult{Success: true, Data: out.Data, Duration: elapsed}
}

func (e *Engine) finishCompleted(ctx context.Context) *Execution {
	e.mu.Lock()
	e.exec.Status = ExecutionStatusCompleted
	e.exec.EndTime = time.Now()
	e.exec.StepResults = e.orderedResultsLocked()
	exec := e.exec
	duration := exec.EndTime.Sub(exec.StartTime)
	e.mu.Unlock()

	e.saveCheckpoint(ctx, CheckpointFinal, "", false)
	e.saveExecution(ctx)

	e.logger.Info("workflow execution completed",
		zap.String("execution_id", exec.ID),
		zap.Duration("duration", duration),
	)
	e.collector.RecordExecution(e.wf.ID, string(ExecutionStatusCompleted), duration)
	return exec
}

func (e *Engine) finishFailed(ctx context.Context, failed *StepResult) *Execution {
	e.saveCheckpoint(ctx, CheckpointErrorRecovery, failed.StepID, true)

	e.mu.Lock()
	// Steps never reached because of the fatal failure still get a
	// terminal result, so the trace stays total and queryable.
	for i := range e.wf.Steps {
		step := &e.wf.Steps[i]
		if _, attempted := e.results[step.ID]; !attempted {
			e.markSkippedLocked(step.ID, fmt.Sprintf("not executed: workflow failed at step %q", failed.StepID))
		}
	}
	e.exec.Status = ExecutionStatusFailed
	e.exec.ErrorMessage = fmt.Sprintf("step %q failed: %s", failed.StepID, failed.Error)
	e.exec.EndTime = time.Now()
	e.exec.StepResults = e.orderedResultsLocked()
	exec := e.exec
	duration := exec.EndTime.Sub(exec.StartTime)
	e.mu.Unlock()

	e.saveCheckpoint(ctx, CheckpointFinal, "", false)
	e.saveExecution(ctx)

	e.logger.Error("workflow execution failed",
		zap.String("execution_id", exec.ID),
		zap.String("failed_step", failed.StepID),
		zap.String("error", exec.ErrorMessage),
	)
	e.collector.RecordExecution(e.wf.ID, string(ExecutionStatusFailed), duration)
	return exec
}

func (e *Engine) finishCanceled(ctx context.Context) error {
	e.mu.Lock()
	e.exec.Status = ExecutionStatusFailed
	e.exec.ErrorMessage = "execution canceled"
	e.exec.EndTime = time.Now()
	e.exec.StepResults = e.orderedResultsLocked()
	executionID := e.exec.ID
	e.mu.Unlock()

	// Best-effort save so recovery can still inspect the partial run.
	e.saveExecution(context.WithoutCancel(ctx))

	e.logger.Warn("workflow execution canceled", zap.String("execution_id", executionID))
	return types.NewError(types.ErrExecutionCanceled, "execution canceled").WithCause(ctx.Err())
}

// orderedResultsLocked assembles the recorded results in definition order.
func (e *Engine) orderedResultsLocked() []*StepResult {
	out := make([]*StepResult, 0, len(e.results))
	for i := range e.wf.Steps {
		if r, ok := e.results[e.wf.Steps[i].ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// saveExecution persists the current execution snapshot. Persistence
// failures are logged, not fatal: the in-memory run stays authoritative
// and the host environment is expected to alert on these.
func (e *Engine) saveExecution(ctx context.Context) {
	if e.store == nil {
		return
	}

	e.mu.Lock()
	snapshot := *e.exec
	ordered := e.orderedResultsLocked()
	snapshot.StepResults = make([]*StepResult, len(ordered))
	for i, r := range ordered {
		snapshot.StepResults[i] = r.Clone()
	}
	e.mu.Unlock()

	if err := e.store.SaveExecution(ctx, &snapshot); err != nil {
		e.logger.Warn("failed to save execution",
			zap.String("execution_id", snapshot.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context, cpType CheckpointType, stepID string, completedOnly bool) {
	if e.store == nil {
		return
	}

	e.mu.Lock()
	cp := NewCheckpoint(e.exec.ID, cpType, stepID, e.results, completedOnly)
	e.mu.Unlock()

	if err := e.store.SaveCheckpoint(ctx, cp); err != nil {
		e.logger.Warn("failed to save checkpoint",
			zap.String("execution_id", cp.ExecutionID),
			zap.String("type", string(cpType)),
			zap.Error(err),
		)
		return
	}
	e.collector.RecordCheckpoint(string(cpType))
}
