package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/tasklog"
)

// sseHeartbeatInterval keeps idle SSE connections from being reaped by
// proxies.
const sseHeartbeatInterval = 15 * time.Second

// LogsHandler serves per-task log history and live streams.
type LogsHandler struct {
	journal *tasklog.Service
	log     *slog.Logger
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(journal *tasklog.Service, log *slog.Logger) *LogsHandler {
	return &LogsHandler{journal: journal, log: log.With("component", "logs-handler")}
}

// Register registers the log routes. The SSE stream is registered on the raw
// router because it does not fit the request-response model.
func (h *LogsHandler) Register(api huma.API, router *chi.Mux) {
	huma.Register(api, huma.Operation{
		OperationID: "getTaskLogs",
		Method:      "GET",
		Path:        "/api/v1/tasks/{id}/logs",
		Summary:     "Get task logs",
		Description: "Returns stored log entries for a task, oldest first",
		Tags:        []string{"Tasks"},
	}, h.GetHistory)

	router.Get("/api/v1/tasks/{id}/logs/stream", h.handleStream)
}

// GetLogsInput is the input for fetching task logs.
type GetLogsInput struct {
	ID     string `path:"id" doc:"Task ID (ULID)"`
	Limit  int    `query:"limit" doc:"Max entries, default 100" required:"false"`
	Offset int    `query:"offset" required:"false"`
}

// GetLogsOutput is the output for fetching task logs.
type GetLogsOutput struct {
	Body struct {
		Logs []TaskLogResponse `json:"logs"`
	}
}

// GetHistory returns stored log entries for a task.
func (h *LogsHandler) GetHistory(ctx context.Context, input *GetLogsInput) (*GetLogsOutput, error) {
	id, err := parseTaskID(input.ID)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}

	entries, err := h.journal.History(ctx, id, limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get task logs", err)
	}

	resp := &GetLogsOutput{}
	resp.Body.Logs = make([]TaskLogResponse, 0, len(entries))
	for _, e := range entries {
		resp.Body.Logs = append(resp.Body.Logs, TaskLogFromModel(e))
	}
	return resp, nil
}

// handleStream streams a task's log entries as server-sent events: the
// stored history first, then live entries as they arrive.
func (h *LogsHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid task ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// the server-wide write timeout would cut the stream off
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Warn("cannot clear write deadline, stream may be cut by the server write timeout",
			"task_id", id, "error", err)
	}

	ch, cancel := h.journal.Subscribe(id)
	defer cancel()

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	history, err := h.journal.History(r.Context(), id, 0, 0)
	if err != nil {
		h.log.Error("failed to load log history for stream", "task_id", id, "error", err)
		return
	}
	for _, entry := range history {
		if err := writeLogEvent(w, entry); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if err := writeLogEvent(w, entry); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeLogEvent(w http.ResponseWriter, entry *models.TaskLog) error {
	data, err := json.Marshal(TaskLogFromModel(entry))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
	return err
}
