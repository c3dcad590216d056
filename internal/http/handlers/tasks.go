package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/progress"
	"github.com/diettube/diettube/internal/repository"
	"github.com/diettube/diettube/internal/worker"
)

// TasksHandler serves task listing and lifecycle operations.
type TasksHandler struct {
	tasks   repository.TaskRepository
	stats   repository.StatsRepository
	worker  *worker.Worker
	tracker *progress.Tracker
}

// NewTasksHandler creates a tasks handler.
func NewTasksHandler(tasks repository.TaskRepository, stats repository.StatsRepository,
	w *worker.Worker, tracker *progress.Tracker) *TasksHandler {
	return &TasksHandler{tasks: tasks, stats: stats, worker: w, tracker: tracker}
}

// Register registers the task routes.
func (h *TasksHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTasks",
		Method:      "GET",
		Path:        "/api/v1/tasks",
		Summary:     "List tasks",
		Description: "Returns tasks with optional status filter, path search, and pagination",
		Tags:        []string{"Tasks"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getTask",
		Method:      "GET",
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Get task",
		Tags:        []string{"Tasks"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "getTaskStats",
		Method:      "GET",
		Path:        "/api/v1/tasks/stats",
		Summary:     "Get processing statistics",
		Description: "Returns totals saved and per-status task counts",
		Tags:        []string{"Tasks"},
	}, h.GetStats)

	huma.Register(api, huma.Operation{
		OperationID: "getCurrentProgress",
		Method:      "GET",
		Path:        "/api/v1/tasks/current",
		Summary:     "Get live progress",
		Description: "Returns the task the worker is processing right now, if any",
		Tags:        []string{"Tasks"},
	}, h.GetCurrent)

	huma.Register(api, huma.Operation{
		OperationID: "cancelTask",
		Method:      "POST",
		Path:        "/api/v1/tasks/{id}/cancel",
		Summary:     "Cancel task",
		Description: "Cancels a pending task or terminates the active one",
		Tags:        []string{"Tasks"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "retryTask",
		Method:      "POST",
		Path:        "/api/v1/tasks/{id}/retry",
		Summary:     "Retry task",
		Description: "Re-queues a failed or cancelled task at the back of the queue",
		Tags:        []string{"Tasks"},
	}, h.Retry)

	huma.Register(api, huma.Operation{
		OperationID: "rollbackTask",
		Method:      "POST",
		Path:        "/api/v1/tasks/{id}/rollback",
		Summary:     "Roll back task",
		Description: "Removes the installed file and restores the archived original",
		Tags:        []string{"Tasks"},
	}, h.Rollback)
}

// ListTasksInput is the input for listing tasks.
type ListTasksInput struct {
	Status string `query:"status" doc:"Filter by task status" required:"false"`
	Search string `query:"search" doc:"Substring match on source path" required:"false"`
	Limit  int    `query:"limit" doc:"Page size, default 50" required:"false"`
	Offset int    `query:"offset" doc:"Page offset" required:"false"`
}

// ListTasksOutput is the output for listing tasks.
type ListTasksOutput struct {
	Body struct {
		Tasks []TaskResponse `json:"tasks"`
		Total int64          `json:"total"`
	}
}

// List returns tasks matching the filters.
func (h *TasksHandler) List(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
	opts := repository.TaskListOptions{
		Search: input.Search,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if input.Status != "" {
		status := models.TaskStatus(input.Status)
		if !status.IsValid() {
			return nil, huma.Error400BadRequest("unknown task status: " + input.Status)
		}
		opts.Status = status
	}

	tasks, total, err := h.tasks.List(ctx, opts)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tasks", err)
	}

	resp := &ListTasksOutput{}
	resp.Body.Total = total
	resp.Body.Tasks = make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp.Body.Tasks = append(resp.Body.Tasks, TaskFromModel(t))
	}
	return resp, nil
}

// GetTaskInput is the input for getting a task.
type GetTaskInput struct {
	ID string `path:"id" doc:"Task ID (ULID)"`
}

// GetTaskOutput is the output for getting a task.
type GetTaskOutput struct {
	Body TaskResponse
}

// GetByID returns one task.
func (h *TasksHandler) GetByID(ctx context.Context, input *GetTaskInput) (*GetTaskOutput, error) {
	id, err := parseTaskID(input.ID)
	if err != nil {
		return nil, err
	}
	task, err := h.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get task", err)
	}
	if task == nil {
		return nil, huma.Error404NotFound("task not found")
	}
	return &GetTaskOutput{Body: TaskFromModel(task)}, nil
}

// GetStatsInput is the input for the stats endpoint.
type GetStatsInput struct{}

// GetStatsOutput is the output for the stats endpoint.
type GetStatsOutput struct {
	Body struct {
		TotalSavedBytes     int64            `json:"total_saved_bytes"`
		TotalProcessedFiles int64            `json:"total_processed_files"`
		StatusCounts        map[string]int64 `json:"status_counts"`
	}
}

// GetStats returns processing totals and per-status counts.
func (h *TasksHandler) GetStats(ctx context.Context, _ *GetStatsInput) (*GetStatsOutput, error) {
	stats, err := h.stats.Get(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get stats", err)
	}
	counts, err := h.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count tasks", err)
	}

	resp := &GetStatsOutput{}
	resp.Body.TotalSavedBytes = stats.TotalSavedBytes
	resp.Body.TotalProcessedFiles = stats.TotalProcessedFiles
	resp.Body.StatusCounts = make(map[string]int64, len(counts))
	for status, n := range counts {
		resp.Body.StatusCounts[string(status)] = n
	}
	return resp, nil
}

// GetCurrentInput is the input for the live progress endpoint.
type GetCurrentInput struct{}

// GetCurrentOutput is the output for the live progress endpoint.
type GetCurrentOutput struct {
	Body struct {
		Current *progress.Current `json:"current"`
	}
}

// GetCurrent returns the live progress of the active task, or null when
// idle.
func (h *TasksHandler) GetCurrent(_ context.Context, _ *GetCurrentInput) (*GetCurrentOutput, error) {
	resp := &GetCurrentOutput{}
	resp.Body.Current = h.tracker.Get()
	return resp, nil
}

// TaskActionOutput is the output of a lifecycle operation.
type TaskActionOutput struct {
	Body TaskResponse
}

// Cancel stops a task.
func (h *TasksHandler) Cancel(ctx context.Context, input *GetTaskInput) (*TaskActionOutput, error) {
	id, err := parseTaskID(input.ID)
	if err != nil {
		return nil, err
	}
	task, err := h.worker.Cancel(ctx, id)
	if err != nil {
		return nil, operationError(err)
	}
	return &TaskActionOutput{Body: TaskFromModel(task)}, nil
}

// Retry re-queues a failed or cancelled task.
func (h *TasksHandler) Retry(ctx context.Context, input *GetTaskInput) (*TaskActionOutput, error) {
	id, err := parseTaskID(input.ID)
	if err != nil {
		return nil, err
	}
	task, err := h.worker.Retry(ctx, id)
	if err != nil {
		return nil, operationError(err)
	}
	return &TaskActionOutput{Body: TaskFromModel(task)}, nil
}

// Rollback undoes a completed task.
func (h *TasksHandler) Rollback(ctx context.Context, input *GetTaskInput) (*TaskActionOutput, error) {
	id, err := parseTaskID(input.ID)
	if err != nil {
		return nil, err
	}
	task, err := h.worker.Rollback(ctx, id)
	if err != nil {
		return nil, operationError(err)
	}
	return &TaskActionOutput{Body: TaskFromModel(task)}, nil
}

// operationError maps worker operation errors to HTTP problem responses.
func operationError(err error) error {
	switch {
	case errors.Is(err, worker.ErrTaskNotFound):
		return huma.Error404NotFound("task not found")
	case errors.Is(err, worker.ErrNotRetryable),
		errors.Is(err, worker.ErrNotRollbackable),
		errors.Is(err, worker.ErrNotCancellable):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("operation failed", err)
	}
}
