// Package worker runs the single-worker task pipeline: it drains the pending
// queue one task at a time through transcode, verify, and install, and hosts
// the queue control operations (pause, resume, cancel, retry, rollback).
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/diettube/diettube/internal/archive"
	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/ffmpeg"
	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/progress"
	"github.com/diettube/diettube/internal/repository"
	"github.com/diettube/diettube/internal/scanner"
	"github.com/diettube/diettube/internal/settings"
	"github.com/diettube/diettube/internal/tasklog"
	"github.com/diettube/diettube/internal/verify"
)

// encoderSampleInterval is how often the running encoder's resource usage is
// sampled.
const encoderSampleInterval = 5 * time.Second

// Errors returned by the task operations.
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrNotRetryable    = errors.New("only failed or cancelled tasks can be retried")
	ErrNotRollbackable = errors.New("only completed tasks can be rolled back")
	ErrNotCancellable  = errors.New("task is not pending or active")
)

// Prober is the probe surface the worker needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// Encoder runs one transcode job.
type Encoder interface {
	Run(ctx context.Context, job ffmpeg.Job) error
}

// Verifier checks an encoded output against the original.
type Verifier interface {
	Verify(ctx context.Context, path string, originalDuration float64) (*verify.Result, error)
}

// Installer rearranges the library once an output passed verification.
type Installer interface {
	Install(task *models.Task, outputPath string, snap settings.Snapshot) (*archive.InstallResult, error)
	Rollback(task *models.Task) (string, error)
}

// Worker processes pending tasks sequentially and exposes lifecycle
// operations on them.
type Worker struct {
	cfg       config.Config
	tasks     repository.TaskRepository
	stats     repository.StatsRepository
	settings  *settings.Manager
	prober    Prober
	encoder   Encoder
	verifier  Verifier
	installer Installer
	tracker   *progress.Tracker
	journal   *tasklog.Service
	log       *slog.Logger

	ctl *controller
}

// New creates a worker. The queue starts paused when the current settings say
// so.
func New(
	cfg config.Config,
	tasks repository.TaskRepository,
	stats repository.StatsRepository,
	settingsMgr *settings.Manager,
	prober Prober,
	encoder Encoder,
	verifier Verifier,
	installer Installer,
	tracker *progress.Tracker,
	journal *tasklog.Service,
	log *slog.Logger,
) *Worker {
	return &Worker{
		cfg:       cfg,
		tasks:     tasks,
		stats:     stats,
		settings:  settingsMgr,
		prober:    prober,
		encoder:   encoder,
		verifier:  verifier,
		installer: installer,
		tracker:   tracker,
		journal:   journal,
		log:       log.With("component", "worker"),
		ctl:       newController(settingsMgr.Current().StartPaused),
	}
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", "paused", w.ctl.isPaused())
	ticker := time.NewTicker(w.cfg.Queue.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped")
			return
		}

		if !w.ctl.isPaused() {
			task, err := w.tasks.NextPending(ctx)
			if err != nil {
				w.log.Error("failed to fetch next pending task", "error", err)
			} else if task != nil {
				w.process(ctx, task)
				continue
			}
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Pause stops new tasks from starting. With immediate set, the active task is
// cancelled too; interrupted reports whether a running task was hit.
func (w *Worker) Pause(immediate bool) (QueueStatus, bool) {
	interrupted := w.ctl.pause(immediate)
	w.log.Info("queue paused", "immediate", immediate, "interrupted", interrupted)
	return w.ctl.status(), interrupted
}

// Resume lets the worker pick up pending tasks again.
func (w *Worker) Resume() QueueStatus {
	w.ctl.resume()
	w.log.Info("queue resumed")
	return w.ctl.status()
}

// Status returns the queue state.
func (w *Worker) Status() QueueStatus {
	return w.ctl.status()
}

// Cancel stops a task. A pending task is cancelled in place; a transcoding or
// verifying task gets its stage interrupted and its partial output removed.
// An installing task is past the point of no return: the library is being
// rearranged, so the cancel is rejected rather than reported and ignored.
func (w *Worker) Cancel(ctx context.Context, id models.ULID) (*models.Task, error) {
	task, err := w.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	switch task.Status {
	case models.TaskStatusPending:
		task.MarkCancelled("cancelled while pending")
		if err := w.tasks.Update(ctx, task); err != nil {
			return nil, err
		}
		w.journal.Info(ctx, task.ID, "task cancelled while pending")
		return task, nil

	case models.TaskStatusTranscoding, models.TaskStatusVerifying:
		if !w.ctl.cancelTask(id) {
			return nil, fmt.Errorf("task %s is marked active but not running", id)
		}
		// the pipeline persists the cancelled status
		return task, nil

	case models.TaskStatusInstalling:
		return nil, fmt.Errorf("%w: install in progress", ErrNotCancellable)

	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, task.Status)
	}
}

// Retry re-queues a failed or cancelled task at the back of the queue.
func (w *Worker) Retry(ctx context.Context, id models.ULID) (*models.Task, error) {
	task, err := w.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if !task.CanRetry() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRetryable, task.Status)
	}

	task.MarkRetried()
	if err := w.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	w.journal.Info(ctx, task.ID, "task re-queued for retry")
	return task, nil
}

// Rollback undoes a completed task: the installed file is removed, the
// archived original restored, and the saved bytes taken back out of the
// stats.
func (w *Worker) Rollback(ctx context.Context, id models.ULID) (*models.Task, error) {
	task, err := w.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if !task.CanRollback() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRollbackable, task.Status)
	}

	saved := task.SavedBytes()

	restoredPath, err := w.installer.Rollback(task)
	if err != nil {
		w.journal.Error(ctx, task.ID, fmt.Sprintf("rollback failed: %v", err))
		return nil, err
	}

	task.MarkRolledBack(restoredPath)
	task.ArchivePath = ""
	if stat, statErr := os.Stat(restoredPath); statErr == nil {
		task.FileModTime = stat.ModTime().UnixNano()
	}
	if fp, fpErr := scanner.Fingerprint(restoredPath); fpErr == nil {
		task.Fingerprint = fp
	}
	if err := w.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	if err := w.stats.RemoveCompletion(ctx, saved); err != nil {
		w.log.Warn("failed to adjust stats after rollback", "error", err)
	}
	w.journal.Info(ctx, task.ID, fmt.Sprintf("rolled back, original restored to %s", restoredPath))
	return task, nil
}

// process runs one task through the pipeline. Each stage failure marks the
// task failed without touching the source file; only a passed verification
// lets the install stage rearrange the library.
func (w *Worker) process(ctx context.Context, task *models.Task) {
	snap := w.settings.Current()
	taskCtx := w.ctl.begin(ctx, task.ID)
	defer w.ctl.end()

	w.tracker.Begin(task)
	defer w.tracker.End()

	w.log.Info("task started", "task_id", task.ID, "path", task.RelativePath, "settings_version", snap.Version)
	w.journal.Info(ctx, task.ID, fmt.Sprintf("processing started with settings version %d", snap.Version))

	outputPath, err := w.transcode(taskCtx, task, snap)
	if err != nil {
		w.finishError(ctx, taskCtx, task, err)
		return
	}

	result, err := w.runVerify(taskCtx, task, outputPath)
	if err != nil {
		os.Remove(outputPath)
		w.finishError(ctx, taskCtx, task, err)
		return
	}

	// install runs on the service context: once verification passed, the
	// library rearrangement is not interruptible by a task cancel
	if err := w.install(ctx, task, outputPath, result, snap); err != nil {
		w.finishError(ctx, taskCtx, task, err)
		return
	}

	w.journal.Info(ctx, task.ID, fmt.Sprintf("completed, saved %d bytes", task.SavedBytes()))
	w.log.Info("task completed", "task_id", task.ID, "saved_bytes", task.SavedBytes())
}

func (w *Worker) transcode(ctx context.Context, task *models.Task, snap settings.Snapshot) (string, error) {
	task.MarkTranscoding()
	if err := w.tasks.Update(ctx, task); err != nil {
		return "", err
	}
	w.tracker.SetStatus(task.Status)

	info, err := w.prober.Probe(ctx, task.SourcePath)
	if err != nil {
		return "", fmt.Errorf("probe failed: %w", err)
	}
	if !info.HasVideo {
		return "", fmt.Errorf("source has no video stream: %s", task.SourcePath)
	}
	task.OriginalDuration = info.Duration

	processingDir := w.cfg.Library.ProcessingDir()
	if err := os.MkdirAll(processingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create processing directory: %w", err)
	}
	outputPath := filepath.Join(processingDir, task.ID.String()+w.cfg.Encoder.OutputExtension)

	args, err := ffmpeg.BuildTranscodeArgs(task.SourcePath, outputPath, *info, snap, w.cfg.Encoder.Marker)
	if err != nil {
		return "", err
	}
	w.journal.Info(ctx, task.ID, fmt.Sprintf("encoding to %s", filepath.Base(outputPath)))

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	err = w.encoder.Run(ctx, ffmpeg.Job{
		Args:          args,
		Output:        outputPath,
		TotalDuration: info.Duration,
		OnProgress:    w.tracker.Report,
		OnStart: func(pid int32) {
			go w.monitorEncoder(monitorCtx, pid)
		},
	})
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

// monitorEncoder periodically samples the encoder process until the stage
// ends.
func (w *Worker) monitorEncoder(ctx context.Context, pid int32) {
	ticker := time.NewTicker(encoderSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.tracker.SetEncoderStats(nil)
			return
		case <-ticker.C:
			stats, err := ffmpeg.SampleProcess(ctx, pid)
			if err != nil {
				return
			}
			w.tracker.SetEncoderStats(stats)
		}
	}
}

func (w *Worker) runVerify(ctx context.Context, task *models.Task, outputPath string) (*verify.Result, error) {
	task.MarkVerifying()
	if err := w.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	w.tracker.SetStatus(task.Status)
	w.journal.Info(ctx, task.ID, "verifying output")

	result, err := w.verifier.Verify(ctx, outputPath, task.OriginalDuration)
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}
	return result, nil
}

func (w *Worker) install(ctx context.Context, task *models.Task, outputPath string, result *verify.Result, snap settings.Snapshot) error {
	task.MarkInstalling()
	if err := w.tasks.Update(ctx, task); err != nil {
		return err
	}
	w.tracker.SetStatus(task.Status)
	w.journal.Info(ctx, task.ID, "installing output")

	installed, err := w.installer.Install(task, outputPath, snap)
	if err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	var modTime time.Time
	if stat, statErr := os.Stat(installed.InstalledPath); statErr == nil {
		modTime = stat.ModTime()
	}
	saved := task.OriginalSize - result.Size

	task.MarkCompleted(installed.InstalledPath, installed.ArchivePath, result.Size, result.Duration, modTime)
	if fp, fpErr := scanner.Fingerprint(installed.InstalledPath); fpErr == nil {
		task.Fingerprint = fp
	}
	if err := w.tasks.Update(ctx, task); err != nil {
		return err
	}

	if err := w.stats.AddCompletion(ctx, saved); err != nil {
		w.log.Warn("failed to update stats", "error", err)
	}
	return nil
}

// finishError persists the terminal state for a failed or cancelled stage.
// The parent context is used for persistence so a cancelled task context
// cannot block the bookkeeping. A cancelled task context means the stage was
// interrupted on request, whatever error the dying subprocess surfaced as.
func (w *Worker) finishError(ctx, taskCtx context.Context, task *models.Task, err error) {
	if ctx.Err() != nil {
		// service shutdown, not a user cancel: put the task back in the
		// queue so the next start picks it up
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		task.MarkRetried()
		if updateErr := w.tasks.Update(persistCtx, task); updateErr != nil {
			w.log.Error("failed to re-queue task on shutdown", "task_id", task.ID, "error", updateErr)
		}
		return
	}

	if taskCtx.Err() != nil || errors.Is(err, ffmpeg.ErrCancelled) || errors.Is(err, context.Canceled) {
		task.MarkCancelled("cancelled by request")
		w.journal.Info(ctx, task.ID, "task cancelled")
		w.log.Info("task cancelled", "task_id", task.ID)
	} else {
		task.MarkFailed(err.Error())
		w.journal.Error(ctx, task.ID, err.Error())
		w.log.Error("task failed", "task_id", task.ID, "error", err)
	}
	if updateErr := w.tasks.Update(ctx, task); updateErr != nil {
		w.log.Error("failed to persist task state", "task_id", task.ID, "error", updateErr)
	}
}
