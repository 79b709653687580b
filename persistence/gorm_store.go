package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sodown4thecause/seobot-sub008/types"
	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// executionRecord is the relational row for an execution. The full record
// is stored as a JSON payload; indexed columns exist for querying only.
type executionRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	WorkflowID     string `gorm:"index;size:128"`
	ConversationID string `gorm:"index;size:128"`
	UserID         string `gorm:"index;size:128"`
	Status         string `gorm:"index;size:16"`
	Payload        []byte
	StartTime      time.Time `gorm:"index"`
	EndTime        time.Time
	UpdatedAt      time.Time
}

func (executionRecord) TableName() string { return "workflow_executions" }

// checkpointRecord is the relational row for a checkpoint. The
// auto-incremented Seq preserves append order.
type checkpointRecord struct {
	Seq          uint   `gorm:"primaryKey;autoIncrement"`
	CheckpointID string `gorm:"uniqueIndex;size:64"`
	ExecutionID  string `gorm:"index;size:64"`
	Type         string `gorm:"size:32"`
	Payload      []byte
	CreatedAt    time.Time
}

func (checkpointRecord) TableName() string { return "workflow_checkpoints" }

// GormStore is a relational ExecutionStore over gorm; postgres in
// production, sqlite in tests.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore migrates the schema and wraps the given database handle.
// The caller keeps ownership of the handle and its connection pool.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&executionRecord{}, &checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_store")),
	}, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the store is healthy.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveExecution upserts an execution record.
func (s *GormStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	if execution == nil || execution.ID == "" {
		return ErrInvalidInput
	}

	payload, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	rec := executionRecord{
		ID:             execution.ID,
		WorkflowID:     execution.WorkflowID,
		ConversationID: execution.ConversationID,
		UserID:         execution.UserID,
		Status:         string(execution.Status),
		Payload:        payload,
		StartTime:      execution.StartTime,
		EndTime:        execution.EndTime,
		UpdatedAt:      time.Now(),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

// LoadExecution fetches the latest persisted record for an execution.
func (s *GormStore) LoadExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	var rec executionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", executionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrExecutionNotFound, "execution "+executionID).WithCause(ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var execution workflow.Execution
	if err := json.Unmarshal(rec.Payload, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &execution, nil
}

// SaveCheckpoint appends a checkpoint to the execution's history.
func (s *GormStore) SaveCheckpoint(ctx context.Context, checkpoint *workflow.Checkpoint) error {
	if checkpoint == nil || checkpoint.ExecutionID == "" {
		return ErrInvalidInput
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	rec := checkpointRecord{
		CheckpointID: checkpoint.ID,
		ExecutionID:  checkpoint.ExecutionID,
		Type:         string(checkpoint.Type),
		Payload:      payload,
		CreatedAt:    checkpoint.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// ListCheckpoints returns an execution's checkpoints in creation order.
func (s *GormStore) ListCheckpoints(ctx context.Context, executionID string) ([]*workflow.Checkpoint, error) {
	var recs []checkpointRecord
	err := s.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("seq").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	out := make([]*workflow.Checkpoint, 0, len(recs))
	for _, rec := range recs {
		var cp workflow.Checkpoint
		if err := json.Unmarshal(rec.Payload, &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		out = append(out, &cp)
	}
	return out, nil
}

// ListExecutions retrieves executions matching the filter, most recent
// first.
func (s *GormStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*workflow.Execution, error) {
	q := s.db.WithContext(ctx).Model(&executionRecord{}).Order("start_time DESC")
	if filter.ConversationID != "" {
		q = q.Where("conversation_id = ?", filter.ConversationID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var recs []executionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]*workflow.Execution, 0, len(recs))
	for _, rec := range recs {
		var execution workflow.Execution
		if err := json.Unmarshal(rec.Payload, &execution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		out = append(out, &execution)
	}
	return out, nil
}

// Cleanup removes terminal executions older than the retention window.
func (s *GormStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	var ids []string
	err := s.db.WithContext(ctx).Model(&executionRecord{}).
		Where("status IN ? AND end_time < ?", []string{
			string(workflow.ExecutionStatusCompleted),
			string(workflow.ExecutionStatusFailed),
		}, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&checkpointRecord{}, "execution_id IN ?", ids).Error; err != nil {
			return err
		}
		return tx.Delete(&executionRecord{}, "id IN ?", ids).Error
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("cleaned up executions", zap.Int("removed", len(ids)))
	return len(ids), nil
}
