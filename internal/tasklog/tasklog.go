// Package tasklog records per-task log lines in the database and fans them
// out to live subscribers for streaming endpoints.
package tasklog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/repository"
)

// subscriberBuffer bounds a subscriber channel; a slow consumer drops lines
// rather than stalling the worker.
const subscriberBuffer = 64

// Service appends task log entries and broadcasts them per task.
type Service struct {
	repo repository.TaskLogRepository
	log  *slog.Logger

	mu   sync.Mutex
	subs map[models.ULID]map[chan *models.TaskLog]struct{}
}

// NewService creates a task log service.
func NewService(repo repository.TaskLogRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "tasklog"),
		subs: make(map[models.ULID]map[chan *models.TaskLog]struct{}),
	}
}

// Append stores a log entry and notifies subscribers of that task. A storage
// failure is logged, never fatal to the caller's pipeline.
func (s *Service) Append(ctx context.Context, taskID models.ULID, level models.LogLevel, message string) {
	entry := &models.TaskLog{
		TaskID:  taskID,
		Level:   level,
		Message: message,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.log.Error("failed to store task log entry", "task_id", taskID, "error", err)
		return
	}
	s.broadcast(entry)
}

// Info appends an info-level entry.
func (s *Service) Info(ctx context.Context, taskID models.ULID, message string) {
	s.Append(ctx, taskID, models.LogLevelInfo, message)
}

// Warning appends a warning-level entry.
func (s *Service) Warning(ctx context.Context, taskID models.ULID, message string) {
	s.Append(ctx, taskID, models.LogLevelWarning, message)
}

// Error appends an error-level entry.
func (s *Service) Error(ctx context.Context, taskID models.ULID, message string) {
	s.Append(ctx, taskID, models.LogLevelError, message)
}

// History returns stored entries for a task, oldest first.
func (s *Service) History(ctx context.Context, taskID models.ULID, limit, offset int) ([]*models.TaskLog, error) {
	return s.repo.GetByTaskID(ctx, taskID, limit, offset)
}

// Subscribe returns a channel of new entries for a task. The returned cancel
// function must be called when done.
func (s *Service) Subscribe(taskID models.ULID) (<-chan *models.TaskLog, func()) {
	ch := make(chan *models.TaskLog, subscriberBuffer)

	s.mu.Lock()
	if s.subs[taskID] == nil {
		s.subs[taskID] = make(map[chan *models.TaskLog]struct{})
	}
	s.subs[taskID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[taskID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(s.subs, taskID)
			}
		}
		close(ch)
	}
	return ch, cancel
}

func (s *Service) broadcast(entry *models.TaskLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[entry.TaskID] {
		select {
		case ch <- entry:
		default:
		}
	}
}
