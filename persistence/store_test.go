package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sodown4thecause/seobot-sub008/types"
	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// newTestStores builds one instance of every backend so the contract suite
// below runs against all of them.
func newTestStores(t *testing.T) map[string]ExecutionStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisStore, err := NewRedisStore(client, "test:", zap.NewNop())
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	gormStore, err := NewGormStore(db, zap.NewNop())
	require.NoError(t, err)

	stores := map[string]ExecutionStore{
		"memory": NewMemoryStore(zap.NewNop()),
		"redis":  redisStore,
		"gorm":   gormStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func sampleExecution(id string, status workflow.ExecutionStatus, start time.Time) *workflow.Execution {
	return &workflow.Execution{
		ID:             id,
		WorkflowID:     "wf-seo-audit",
		ConversationID: "conv-1",
		UserID:         "user-1",
		Status:         status,
		StartTime:      start,
		StepResults: []*workflow.StepResult{
			{StepID: "step1", Status: workflow.StepStatusCompleted, Data: "out"},
		},
	}
}

// ---------------------------------------------------------------------------
// Contract suite
// ---------------------------------------------------------------------------

func TestExecutionStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exec := sampleExecution("exec-rt", workflow.ExecutionStatusCompleted, time.Now())
			require.NoError(t, store.SaveExecution(ctx, exec))

			loaded, err := store.LoadExecution(ctx, "exec-rt")
			require.NoError(t, err)
			assert.Equal(t, exec.ID, loaded.ID)
			assert.Equal(t, exec.WorkflowID, loaded.WorkflowID)
			assert.Equal(t, exec.Status, loaded.Status)
			require.Len(t, loaded.StepResults, 1)
			assert.Equal(t, "step1", loaded.StepResults[0].StepID)
			assert.Equal(t, workflow.StepStatusCompleted, loaded.StepResults[0].Status)
		})
	}
}

func TestExecutionStore_SaveIsUpsert(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exec := sampleExecution("exec-up", workflow.ExecutionStatusRunning, time.Now())
			require.NoError(t, store.SaveExecution(ctx, exec))

			exec.Status = workflow.ExecutionStatusFailed
			exec.ErrorMessage = "boom"
			require.NoError(t, store.SaveExecution(ctx, exec))

			loaded, err := store.LoadExecution(ctx, "exec-up")
			require.NoError(t, err)
			assert.Equal(t, workflow.ExecutionStatusFailed, loaded.Status)
			assert.Equal(t, "boom", loaded.ErrorMessage)
		})
	}
}

func TestExecutionStore_LoadMissing(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.LoadExecution(context.Background(), "does-not-exist")
			require.Error(t, err)
			assert.Equal(t, types.ErrExecutionNotFound, types.GetErrorCode(err))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExecutionStore_SaveInvalidInput(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, store.SaveExecution(ctx, nil), ErrInvalidInput)
			assert.ErrorIs(t, store.SaveExecution(ctx, &workflow.Execution{}), ErrInvalidInput)
			assert.ErrorIs(t, store.SaveCheckpoint(ctx, nil), ErrInvalidInput)
			assert.ErrorIs(t, store.SaveCheckpoint(ctx, &workflow.Checkpoint{}), ErrInvalidInput)
		})
	}
}

func TestExecutionStore_CheckpointsAppendInOrder(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seq := []workflow.CheckpointType{
				workflow.CheckpointStepStart,
				workflow.CheckpointStepStart,
				workflow.CheckpointErrorRecovery,
				workflow.CheckpointFinal,
			}
			for i, cpType := range seq {
				cp := &workflow.Checkpoint{
					ID:          fmt.Sprintf("ckpt-%d", i),
					ExecutionID: "exec-cp",
					Type:        cpType,
					CreatedAt:   time.Now(),
				}
				require.NoError(t, store.SaveCheckpoint(ctx, cp))
			}

			cps, err := store.ListCheckpoints(ctx, "exec-cp")
			require.NoError(t, err)
			require.Len(t, cps, len(seq))
			for i, cp := range cps {
				assert.Equal(t, fmt.Sprintf("ckpt-%d", i), cp.ID)
				assert.Equal(t, seq[i], cp.Type)
			}
		})
	}
}

func TestExecutionStore_ListCheckpointsEmpty(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			cps, err := store.ListCheckpoints(context.Background(), "never-saved")
			require.NoError(t, err)
			assert.Empty(t, cps)
		})
	}
}

func TestExecutionStore_ListExecutionsFilterAndOrder(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)

			older := sampleExecution("exec-old", workflow.ExecutionStatusCompleted, base)
			newer := sampleExecution("exec-new", workflow.ExecutionStatusFailed, base.Add(10*time.Minute))
			other := sampleExecution("exec-other", workflow.ExecutionStatusCompleted, base.Add(20*time.Minute))
			other.ConversationID = "conv-2"
			other.UserID = "user-2"

			for _, e := range []*workflow.Execution{older, newer, other} {
				require.NoError(t, store.SaveExecution(ctx, e))
			}

			all, err := store.ListExecutions(ctx, ExecutionFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "exec-other", all[0].ID, "most recent first")
			assert.Equal(t, "exec-old", all[2].ID)

			byConv, err := store.ListExecutions(ctx, ExecutionFilter{ConversationID: "conv-1"})
			require.NoError(t, err)
			assert.Len(t, byConv, 2)

			byStatus, err := store.ListExecutions(ctx, ExecutionFilter{Status: workflow.ExecutionStatusFailed})
			require.NoError(t, err)
			require.Len(t, byStatus, 1)
			assert.Equal(t, "exec-new", byStatus[0].ID)

			limited, err := store.ListExecutions(ctx, ExecutionFilter{Limit: 1})
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "exec-other", limited[0].ID)
		})
	}
}

func TestExecutionStore_CleanupRemovesOldTerminal(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := sampleExecution("exec-stale", workflow.ExecutionStatusCompleted, time.Now().Add(-48*time.Hour))
			old.EndTime = time.Now().Add(-47 * time.Hour)
			fresh := sampleExecution("exec-fresh", workflow.ExecutionStatusCompleted, time.Now())
			fresh.EndTime = time.Now()
			running := sampleExecution("exec-running", workflow.ExecutionStatusRunning, time.Now().Add(-48*time.Hour))

			for _, e := range []*workflow.Execution{old, fresh, running} {
				require.NoError(t, store.SaveExecution(ctx, e))
			}
			require.NoError(t, store.SaveCheckpoint(ctx, &workflow.Checkpoint{
				ID:          "ckpt-stale",
				ExecutionID: "exec-stale",
				Type:        workflow.CheckpointFinal,
				CreatedAt:   time.Now().Add(-47 * time.Hour),
			}))

			removed, err := store.Cleanup(ctx, 24*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			_, err = store.LoadExecution(ctx, "exec-stale")
			assert.Equal(t, types.ErrExecutionNotFound, types.GetErrorCode(err))

			cps, err := store.ListCheckpoints(ctx, "exec-stale")
			require.NoError(t, err)
			assert.Empty(t, cps, "checkpoints go with their execution")

			_, err = store.LoadExecution(ctx, "exec-fresh")
			assert.NoError(t, err)
			_, err = store.LoadExecution(ctx, "exec-running")
			assert.NoError(t, err, "non-terminal executions survive cleanup")
		})
	}
}

func TestExecutionStore_Ping(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, store.Ping(context.Background()))
		})
	}
}

// ---------------------------------------------------------------------------
// Memory-specific behavior
// ---------------------------------------------------------------------------

func TestMemoryStore_ClosedRejectsOperations(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(zap.NewNop())
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
	assert.ErrorIs(t, store.SaveExecution(ctx, sampleExecution("x", workflow.ExecutionStatusRunning, time.Now())), ErrStoreClosed)
	_, err := store.LoadExecution(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.ListExecutions(ctx, ExecutionFilter{})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Cleanup(ctx, time.Hour)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

// ---------------------------------------------------------------------------
// Engine integration
// ---------------------------------------------------------------------------

// TestExecutionStore_EngineWritesThrough runs a real engine over each
// backend and checks the persisted trail.
func TestExecutionStore_EngineWritesThrough(t *testing.T) {
	t.Parallel()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			reg := workflow.NewRegistry(zap.NewNop())
			reg.Register(workflow.NewToolFunc("audit", func(ctx context.Context, params map[string]any) (any, error) {
				return map[string]any{"pages": float64(3)}, nil
			}))

			wf := &workflow.Workflow{ID: "wf-audit", Steps: []workflow.Step{
				{ID: "crawl", Tools: []workflow.ToolInvocation{{Name: "audit", Required: true}}},
			}}
			eng := workflow.NewEngine(wf, workflow.NewContext("audit my site"), reg, store,
				workflow.WithConversation("conv-9", "user-9"))

			exec, err := eng.Execute(context.Background())
			require.NoError(t, err)
			require.Equal(t, workflow.ExecutionStatusCompleted, exec.Status)

			loaded, err := store.LoadExecution(context.Background(), exec.ID)
			require.NoError(t, err)
			assert.Equal(t, workflow.ExecutionStatusCompleted, loaded.Status)
			assert.Equal(t, "conv-9", loaded.ConversationID)

			cps, err := store.ListCheckpoints(context.Background(), exec.ID)
			require.NoError(t, err)
			require.Len(t, cps, 2)
			assert.Equal(t, workflow.CheckpointStepStart, cps[0].Type)
			assert.Equal(t, workflow.CheckpointFinal, cps[1].Type)
		})
	}
}
