// Package repository provides data access layers for diettube models using GORM.
package repository

import (
	"context"

	"github.com/diettube/diettube/internal/models"
)

// TaskListOptions controls filtering and pagination for task listings.
type TaskListOptions struct {
	// Status filters by task status when non-empty.
	Status models.TaskStatus
	// Search matches a substring of the source path when non-empty.
	Search string
	// Limit caps the number of returned tasks (0 = repository default).
	Limit int
	// Offset skips the first N tasks for pagination.
	Offset int
}

// TaskRepository defines data access for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id models.ULID) (*models.Task, error)
	GetBySourcePath(ctx context.Context, path string) (*models.Task, error)
	GetAll(ctx context.Context) ([]*models.Task, error)
	List(ctx context.Context, opts TaskListOptions) ([]*models.Task, int64, error)
	GetByStatuses(ctx context.Context, statuses ...models.TaskStatus) ([]*models.Task, error)
	NextPending(ctx context.Context) (*models.Task, error)
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id models.ULID) error
	ResetActiveToPending(ctx context.Context) (int64, error)
}

// TaskLogRepository defines data access for task log entries.
type TaskLogRepository interface {
	Append(ctx context.Context, entry *models.TaskLog) error
	GetByTaskID(ctx context.Context, taskID models.ULID, limit, offset int) ([]*models.TaskLog, error)
	DeleteByTaskID(ctx context.Context, taskID models.ULID) error
}

// StatsRepository defines data access for the processing stats aggregate.
type StatsRepository interface {
	Get(ctx context.Context) (*models.ProcessingStats, error)
	AddCompletion(ctx context.Context, savedBytes int64) error
	RemoveCompletion(ctx context.Context, savedBytes int64) error
	Recalculate(ctx context.Context) (*models.ProcessingStats, error)
}

// SettingsRepository defines data access for the runtime settings blob.
type SettingsRepository interface {
	GetBlob(ctx context.Context) (string, bool, error)
	SaveBlob(ctx context.Context, blob string) error
}
