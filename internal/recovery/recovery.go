// Package recovery brings the task table and the working directories back to
// a consistent state after an unclean shutdown. It runs once at startup,
// before the worker starts.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/repository"
)

// Result reports what recovery had to fix.
type Result struct {
	TasksRequeued int64
}

// Run resets tasks stranded in an active status back to pending, wipes the
// processing directory of partial outputs, and recomputes the cached stats.
// Any failure is fatal: starting the worker on inconsistent state risks
// corrupting the library.
func Run(ctx context.Context, tasks repository.TaskRepository, stats repository.StatsRepository,
	cfg config.LibraryConfig, log *slog.Logger) (*Result, error) {
	log = log.With("component", "recovery")

	requeued, err := tasks.ResetActiveToPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reset stranded tasks: %w", err)
	}
	if requeued > 0 {
		log.Info("re-queued tasks stranded by unclean shutdown", "count", requeued)
	}

	processingDir := cfg.ProcessingDir()
	if err := os.RemoveAll(processingDir); err != nil {
		return nil, fmt.Errorf("failed to clear processing directory %s: %w", processingDir, err)
	}
	if err := os.MkdirAll(processingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to recreate processing directory %s: %w", processingDir, err)
	}
	if err := os.MkdirAll(cfg.TrashDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trash directory: %w", err)
	}

	if _, err := stats.Recalculate(ctx); err != nil {
		return nil, fmt.Errorf("failed to recalculate stats: %w", err)
	}

	log.Info("recovery finished", "requeued", requeued)
	return &Result{TasksRequeued: requeued}, nil
}
