package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/worker"
)

// QueueHandler controls the worker queue.
type QueueHandler struct {
	worker *worker.Worker
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(w *worker.Worker) *QueueHandler {
	return &QueueHandler{worker: w}
}

// Register registers the queue routes.
func (h *QueueHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getQueueStatus",
		Method:      "GET",
		Path:        "/api/v1/queue",
		Summary:     "Get queue status",
		Tags:        []string{"Queue"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "pauseQueue",
		Method:      "POST",
		Path:        "/api/v1/queue/pause",
		Summary:     "Pause the queue",
		Description: "Stops new tasks from starting; with immediate set, the active task is cancelled",
		Tags:        []string{"Queue"},
	}, h.Pause)

	huma.Register(api, huma.Operation{
		OperationID: "resumeQueue",
		Method:      "POST",
		Path:        "/api/v1/queue/resume",
		Summary:     "Resume the queue",
		Tags:        []string{"Queue"},
	}, h.Resume)
}

// QueueStatusInput is the input for the queue status endpoint.
type QueueStatusInput struct{}

// QueueStatusOutput carries the queue state.
type QueueStatusOutput struct {
	Body worker.QueueStatus
}

// Status returns the queue state.
func (h *QueueHandler) Status(_ context.Context, _ *QueueStatusInput) (*QueueStatusOutput, error) {
	return &QueueStatusOutput{Body: h.worker.Status()}, nil
}

// PauseQueueInput is the input for pausing the queue.
type PauseQueueInput struct {
	Body struct {
		Immediate bool `json:"immediate,omitempty" doc:"Also cancel the active task"`
	}
}

// PauseQueueOutput carries the queue state after a pause, including whether
// a running task was interrupted.
type PauseQueueOutput struct {
	Body struct {
		worker.QueueStatus
		Interrupted bool `json:"interrupted"`
	}
}

// Pause stops the worker from starting new tasks.
func (h *QueueHandler) Pause(_ context.Context, input *PauseQueueInput) (*PauseQueueOutput, error) {
	status, interrupted := h.worker.Pause(input.Body.Immediate)
	resp := &PauseQueueOutput{}
	resp.Body.QueueStatus = status
	resp.Body.Interrupted = interrupted
	return resp, nil
}

// ResumeQueueInput is the input for resuming the queue.
type ResumeQueueInput struct{}

// Resume lets the worker pick up tasks again.
func (h *QueueHandler) Resume(_ context.Context, _ *ResumeQueueInput) (*QueueStatusOutput, error) {
	return &QueueStatusOutput{Body: h.worker.Resume()}, nil
}
