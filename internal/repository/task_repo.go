package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/diettube/diettube/internal/models"
)

// defaultListLimit bounds unpaginated task listings.
const defaultListLimit = 50

// taskRepo implements TaskRepository using GORM.
type taskRepo struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

// Create creates a new task.
func (r *taskRepo) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID. Returns nil when not found.
func (r *taskRepo) GetByID(ctx context.Context, id models.ULID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting task by ID: %w", err)
	}
	return &task, nil
}

// GetBySourcePath retrieves the task that currently owns the given live path.
// Returns nil when not found.
func (r *taskRepo) GetBySourcePath(ctx context.Context, path string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("source_path = ?", path).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting task by source path: %w", err)
	}
	return &task, nil
}

// GetAll retrieves all tasks ordered by creation time.
func (r *taskRepo) GetAll(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("getting all tasks: %w", err)
	}
	return tasks, nil
}

// List retrieves tasks with filtering and pagination, newest first, and the
// total matching count.
func (r *taskRepo) List(ctx context.Context, opts TaskListOptions) ([]*models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Search != "" {
		query = query.Where("source_path LIKE ?", "%"+opts.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var tasks []*models.Task
	if err := query.Order("created_at DESC").Offset(opts.Offset).Limit(limit).Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, total, nil
}

// GetByStatuses retrieves tasks in any of the given statuses.
func (r *taskRepo) GetByStatuses(ctx context.Context, statuses ...models.TaskStatus) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := r.db.WithContext(ctx).Where("status IN ?", statuses).Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("getting tasks by status: %w", err)
	}
	return tasks, nil
}

// NextPending retrieves the oldest queued pending task, or nil when the
// queue is empty. Queue order is by queued_at so that retried tasks re-enter
// at the back.
func (r *taskRepo) NextPending(ctx context.Context) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TaskStatusPending).
		Order("queued_at ASC").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting next pending task: %w", err)
	}
	return &task, nil
}

// CountByStatus returns the task count per status.
func (r *taskRepo) CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	type statusCount struct {
		Status models.TaskStatus
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting tasks by status: %w", err)
	}

	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Update updates an existing task.
func (r *taskRepo) Update(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

// Delete deletes a task and its log entries.
func (r *taskRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskLog{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Task{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// ResetActiveToPending moves every task stuck in an active status back to
// pending with a clear error message. Used by crash recovery.
func (r *taskRepo) ResetActiveToPending(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("status IN ?", models.ActiveStatuses).
		UpdateColumns(map[string]any{
			"status":        models.TaskStatusPending,
			"error_message": "",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("resetting active tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
