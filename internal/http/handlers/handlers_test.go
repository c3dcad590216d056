package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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
	"github.com/diettube/diettube/internal/worker"
)

type handlerEnv struct {
	tasks    repository.TaskRepository
	stats    repository.StatsRepository
	worker   *worker.Worker
	tracker  *progress.Tracker
	manager  *settings.Manager
	journal  *tasklog.Service
	scanner  *scanner.Scanner
	trashDir string
}

func setupEnv(t *testing.T) *handlerEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Task{}, &models.TaskLog{}, &models.ProcessingStats{}, &models.Setting{}))

	root := t.TempDir()
	cfg := config.Config{}
	cfg.Library.SourceDir = filepath.Join(root, "source")
	cfg.Library.TempDir = filepath.Join(root, "temp")
	cfg.Encoder.Marker = "DietTube-Processed"
	cfg.Encoder.OutputExtension = ".mkv"
	cfg.Queue.PollInterval = time.Second
	require.NoError(t, os.MkdirAll(cfg.Library.SourceDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Library.TrashDir(), 0o755))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tasks := repository.NewTaskRepository(db)
	stats := repository.NewStatsRepository(db)
	manager, err := settings.NewManager(context.Background(), repository.NewSettingsRepository(db), log)
	require.NoError(t, err)

	prober := ffmpeg.NewProber("", 0)
	tracker := progress.NewTracker()
	journal := tasklog.NewService(repository.NewTaskLogRepository(db), log)
	w := worker.New(cfg, tasks, stats, manager, prober, ffmpeg.NewTranscoder("", log),
		verify.New(prober, cfg.Verify, log),
		archive.NewInstaller(cfg.Library, cfg.Encoder.OutputExtension, log),
		tracker, journal, log)

	scn := scanner.New(cfg.Library, cfg.Encoder.Marker, tasks, stats, prober, manager, log)

	return &handlerEnv{
		tasks:    tasks,
		stats:    stats,
		worker:   w,
		tracker:  tracker,
		manager:  manager,
		journal:  journal,
		scanner:  scn,
		trashDir: cfg.Library.TrashDir(),
	}
}

func (e *handlerEnv) createTask(t *testing.T, path string, status models.TaskStatus) *models.Task {
	t.Helper()
	task := &models.Task{
		SourcePath:   path,
		RelativePath: filepath.Base(path),
		Status:       status,
		OriginalSize: 1000,
	}
	require.NoError(t, e.tasks.Create(context.Background(), task))
	return task
}

func TestTasksHandler_ListAndGet(t *testing.T) {
	env := setupEnv(t)
	h := NewTasksHandler(env.tasks, env.stats, env.worker, env.tracker)
	ctx := context.Background()

	pending := env.createTask(t, "/source/a.mkv", models.TaskStatusPending)
	env.createTask(t, "/source/b.mkv", models.TaskStatusFailed)

	out, err := h.List(ctx, &ListTasksInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Body.Total)

	out, err = h.List(ctx, &ListTasksInput{Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Body.Total)

	_, err = h.List(ctx, &ListTasksInput{Status: "bogus"})
	assert.Error(t, err)

	got, err := h.GetByID(ctx, &GetTaskInput{ID: pending.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "/source/a.mkv", got.Body.SourcePath)

	_, err = h.GetByID(ctx, &GetTaskInput{ID: models.NewULID().String()})
	assert.Error(t, err)

	_, err = h.GetByID(ctx, &GetTaskInput{ID: "not-a-ulid"})
	assert.Error(t, err)
}

func TestTasksHandler_Stats(t *testing.T) {
	env := setupEnv(t)
	h := NewTasksHandler(env.tasks, env.stats, env.worker, env.tracker)
	ctx := context.Background()

	env.createTask(t, "/source/a.mkv", models.TaskStatusPending)
	env.createTask(t, "/source/b.mkv", models.TaskStatusPending)
	require.NoError(t, env.stats.AddCompletion(ctx, 500))

	out, err := h.GetStats(ctx, &GetStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(500), out.Body.TotalSavedBytes)
	assert.Equal(t, int64(2), out.Body.StatusCounts["pending"])
}

func TestTasksHandler_CurrentProgress(t *testing.T) {
	env := setupEnv(t)
	h := NewTasksHandler(env.tasks, env.stats, env.worker, env.tracker)

	out, err := h.GetCurrent(context.Background(), &GetCurrentInput{})
	require.NoError(t, err)
	assert.Nil(t, out.Body.Current)

	task := env.createTask(t, "/source/a.mkv", models.TaskStatusTranscoding)
	env.tracker.Begin(task)

	out, err = h.GetCurrent(context.Background(), &GetCurrentInput{})
	require.NoError(t, err)
	require.NotNil(t, out.Body.Current)
	assert.Equal(t, task.ID, out.Body.Current.TaskID)
}

func TestTasksHandler_LifecycleOps(t *testing.T) {
	env := setupEnv(t)
	h := NewTasksHandler(env.tasks, env.stats, env.worker, env.tracker)
	ctx := context.Background()

	pending := env.createTask(t, "/source/a.mkv", models.TaskStatusPending)
	out, err := h.Cancel(ctx, &GetTaskInput{ID: pending.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, string(models.TaskStatusCancelled), out.Body.Status)

	out, err = h.Retry(ctx, &GetTaskInput{ID: pending.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, string(models.TaskStatusPending), out.Body.Status)

	// retry of a pending task conflicts
	_, err = h.Retry(ctx, &GetTaskInput{ID: pending.ID.String()})
	assert.Error(t, err)

	// rollback of a non-completed task conflicts
	_, err = h.Rollback(ctx, &GetTaskInput{ID: pending.ID.String()})
	assert.Error(t, err)
}

func TestQueueHandler(t *testing.T) {
	env := setupEnv(t)
	h := NewQueueHandler(env.worker)
	ctx := context.Background()

	out, err := h.Status(ctx, &QueueStatusInput{})
	require.NoError(t, err)
	assert.False(t, out.Body.Paused)

	paused, err := h.Pause(ctx, &PauseQueueInput{})
	require.NoError(t, err)
	assert.True(t, paused.Body.Paused)
	assert.False(t, paused.Body.Interrupted, "no task was running")

	out, err = h.Resume(ctx, &ResumeQueueInput{})
	require.NoError(t, err)
	assert.False(t, out.Body.Paused)
}

func TestSettingsHandler(t *testing.T) {
	env := setupEnv(t)
	h := NewSettingsHandler(env.manager, "DietTube-Processed")
	ctx := context.Background()

	out, err := h.Get(ctx, &GetSettingsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Body.Version)

	next := settings.Defaults()
	next.VideoCRF = 24
	out, err = h.Update(ctx, &UpdateSettingsInput{Body: next})
	require.NoError(t, err)
	assert.Equal(t, 24, out.Body.VideoCRF)
	assert.Equal(t, int64(2), out.Body.Version)

	bad := settings.Defaults()
	bad.VideoCRF = 99
	_, err = h.Update(ctx, &UpdateSettingsInput{Body: bad})
	assert.Error(t, err)
}

func TestSettingsHandler_Preview(t *testing.T) {
	env := setupEnv(t)
	h := NewSettingsHandler(env.manager, "DietTube-Processed")

	input := &PreviewInput{}
	out, err := h.Preview(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, out.Body.Args, "libsvtav1")
	assert.Contains(t, out.Body.Args, "INPUT")
	assert.Contains(t, out.Body.Args, "OUTPUT")
}

func TestTrashHandler(t *testing.T) {
	env := setupEnv(t)
	h := NewTrashHandler(archive.NewTrash(env.trashDir))
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(env.trashDir, "old.avi"), []byte("12345"), 0o644))

	list, err := h.List(ctx, &ListTrashInput{})
	require.NoError(t, err)
	require.Len(t, list.Body.Files, 1)
	assert.Equal(t, "old.avi", list.Body.Files[0].RelativePath)

	info, err := h.Info(ctx, &TrashInfoInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, info.Body.FileCount)
	assert.Equal(t, int64(5), info.Body.TotalBytes)

	emptied, err := h.Empty(ctx, &EmptyTrashInput{})
	require.NoError(t, err)
	assert.True(t, emptied.Body.Emptied)

	info, err = h.Info(ctx, &TrashInfoInput{})
	require.NoError(t, err)
	assert.Zero(t, info.Body.FileCount)
}

func TestScanHandler_IgnorePreview(t *testing.T) {
	env := setupEnv(t)
	h := NewScanHandler(env.scanner)

	input := &IgnorePreviewInput{}
	input.Body.Patterns = []string{"samples/*", "*.tmp.mkv"}
	input.Body.Paths = []string{"samples/a.mkv", "show.tmp.mkv", "keep.mkv"}

	out, err := h.IgnorePreview(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"samples/a.mkv", "show.tmp.mkv"}, out.Body.Ignored)
	assert.Equal(t, []string{"keep.mkv"}, out.Body.Kept)
}

func TestScanHandler_Status(t *testing.T) {
	env := setupEnv(t)
	h := NewScanHandler(env.scanner)

	out, err := h.Status(context.Background(), &ScanStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, scanner.PhaseIdle, out.Body.Phase)
}

func TestLogsHandler_History(t *testing.T) {
	env := setupEnv(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewLogsHandler(env.journal, log)
	ctx := context.Background()

	task := env.createTask(t, "/source/a.mkv", models.TaskStatusPending)
	env.journal.Info(ctx, task.ID, "queued")
	env.journal.Error(ctx, task.ID, "encoder failed")

	out, err := h.GetHistory(ctx, &GetLogsInput{ID: task.ID.String()})
	require.NoError(t, err)
	require.Len(t, out.Body.Logs, 2)
	assert.Equal(t, "queued", out.Body.Logs[0].Message)
	assert.Equal(t, "error", out.Body.Logs[1].Level)
}

// The recorder does not support write deadlines, so this also covers the
// stream surviving a ResponseController that cannot clear them.
func TestLogsHandler_Stream(t *testing.T) {
	env := setupEnv(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewLogsHandler(env.journal, log)
	ctx := context.Background()

	task := env.createTask(t, "/source/a.mkv", models.TaskStatusPending)
	env.journal.Info(ctx, task.ID, "queued")

	router := chi.NewRouter()
	router.Get("/api/v1/tasks/{id}/logs/stream", h.handleStream)

	reqCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(reqCtx))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, ":connected")
	assert.Contains(t, body, "event: log")
	assert.Contains(t, body, "queued")
}

func TestLogsHandler_StreamRejectsBadID(t *testing.T) {
	env := setupEnv(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewLogsHandler(env.journal, log)

	router := chi.NewRouter()
	router.Get("/api/v1/tasks/{id}/logs/stream", h.handleStream)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/not-a-ulid/logs/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), t.TempDir())

	out, err := h.Get(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
	assert.NotEmpty(t, out.Body.GoVersion)

	v, err := h.Version(context.Background(), &VersionInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, v.Body.Version)
}
