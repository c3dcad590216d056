package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/diettube/diettube/internal/models"
)

// taskLogRepo implements TaskLogRepository using GORM.
type taskLogRepo struct {
	db *gorm.DB
}

// NewTaskLogRepository creates a new TaskLogRepository.
func NewTaskLogRepository(db *gorm.DB) TaskLogRepository {
	return &taskLogRepo{db: db}
}

// Append stores a new log entry. Entries are never updated afterwards.
func (r *taskLogRepo) Append(ctx context.Context, entry *models.TaskLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending task log: %w", err)
	}
	return nil
}

// GetByTaskID retrieves log entries for a task in append order.
func (r *taskLogRepo) GetByTaskID(ctx context.Context, taskID models.ULID, limit, offset int) ([]*models.TaskLog, error) {
	query := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []*models.TaskLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("getting task logs: %w", err)
	}
	return entries, nil
}

// DeleteByTaskID removes all log entries for a task.
func (r *taskLogRepo) DeleteByTaskID(ctx context.Context, taskID models.ULID) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.TaskLog{}).Error; err != nil {
		return fmt.Errorf("deleting task logs: %w", err)
	}
	return nil
}
