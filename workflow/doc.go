// Copyright (c) SEOBot Authors.
// Licensed under the MIT License.

/*
Package workflow provides the content-pipeline orchestration engine: a
single-process executor for declarative step graphs with dependency
resolution, parallel step groups, per-step tool invocation, durable
checkpointing, and failure recovery.

# Core types

  - Workflow / Step / ToolInvocation — immutable declarative definition
  - Context — caller-supplied per-run state with tool memoization
  - Engine — dependency-resolving executor, one Execution per run
  - StepResult / Execution — the queryable trace of a run
  - Checkpoint / ExecutionStore — durable progress snapshots
  - RecoveryService — resume-point analysis for failed runs
  - Registry / Tool / ToolFunc — the tool-calling boundary

# Execution semantics

A step is ready once every dependency has completed. Steps whose
dependencies failed, were skipped, or do not exist are skipped, and skips
propagate transitively. Mutually circular steps stall and are force-skipped
once no progress is possible; no distinct cycle error is raised. Ready
steps flagged Parallel run concurrently; all other steps run strictly
sequentially in declaration order. A required tool failure fails its step,
which is fatal to the run: the engine stops scheduling, marks unreached
steps skipped, and returns a failed Execution rather than an error.

Checkpoints are written before each step (step_start), after a step failure
(error_recovery, completed results only), and at terminal state (final).
RecoveryService inspects a persisted execution for the longest completed
prefix; re-running the engine with WithCompletedResults resumes from there.
*/
package workflow
