// Package handlers implements the REST API operations.
package handlers

import (
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/models"
)

// TaskResponse is the API representation of a task.
type TaskResponse struct {
	ID               string    `json:"id" doc:"Task ID (ULID)"`
	SourcePath       string    `json:"source_path"`
	RelativePath     string    `json:"relative_path"`
	Status           string    `json:"status"`
	OriginalSize     int64     `json:"original_size"`
	OriginalDuration float64   `json:"original_duration"`
	NewSize          int64     `json:"new_size,omitempty"`
	NewDuration      float64   `json:"new_duration,omitempty"`
	SavedBytes       int64     `json:"saved_bytes,omitempty"`
	ArchivePath      string    `json:"archive_path,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	QueuedAt         time.Time `json:"queued_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TaskFromModel converts a task model to its API representation.
func TaskFromModel(t *models.Task) TaskResponse {
	resp := TaskResponse{
		ID:               t.ID.String(),
		SourcePath:       t.SourcePath,
		RelativePath:     t.RelativePath,
		Status:           string(t.Status),
		OriginalSize:     t.OriginalSize,
		OriginalDuration: t.OriginalDuration,
		NewSize:          t.NewSize,
		NewDuration:      t.NewDuration,
		ArchivePath:      t.ArchivePath,
		ErrorMessage:     t.ErrorMessage,
		QueuedAt:         t.QueuedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.Status == models.TaskStatusCompleted {
		resp.SavedBytes = t.SavedBytes()
	}
	return resp
}

// TaskLogResponse is the API representation of a task log entry.
type TaskLogResponse struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskLogFromModel converts a task log model to its API representation.
func TaskLogFromModel(l *models.TaskLog) TaskLogResponse {
	return TaskLogResponse{
		ID:        l.ID.String(),
		Level:     string(l.Level),
		Message:   l.Message,
		CreatedAt: l.CreatedAt,
	}
}

func parseTaskID(raw string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest("invalid task ID", err)
	}
	return id, nil
}
