// Package scanner discovers work by walking the source library and diffing
// what it finds against the task table. Change detection runs in three
// levels, cheapest first: stored size and mtime, then a head-and-tail content
// fingerprint, then an ffprobe of the container comment. The probe marker is
// authoritative: a file carrying it is never re-queued no matter what the
// task table says.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/ffmpeg"
	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/repository"
	"github.com/diettube/diettube/internal/settings"
)

// ErrScanInProgress is returned when a scan is requested while one is
// already running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Prober is the probe surface the scanner needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// SettingsSource provides the current runtime settings snapshot.
type SettingsSource interface {
	Current() settings.Snapshot
}

// Result summarizes one completed scan.
type Result struct {
	FilesSeen     int `json:"files_seen"`
	FilesSkipped  int `json:"files_skipped"`
	TasksQueued   int `json:"tasks_queued"`
	TasksRequeued int `json:"tasks_requeued"`
	MarkedDone    int `json:"marked_done"`
	TasksRemoved  int `json:"tasks_removed"`
	Errors        int `json:"errors"`
}

// Scanner walks the source library and keeps the task table in sync with it.
type Scanner struct {
	cfg      config.LibraryConfig
	marker   string
	tasks    repository.TaskRepository
	stats    repository.StatsRepository
	prober   Prober
	settings SettingsSource
	log      *slog.Logger

	inFlight chan struct{}
	progress progressTracker
}

// New creates a scanner. marker is the container comment that identifies
// already-processed files.
func New(cfg config.LibraryConfig, marker string, tasks repository.TaskRepository,
	stats repository.StatsRepository, prober Prober, src SettingsSource, log *slog.Logger) *Scanner {
	return &Scanner{
		cfg:      cfg,
		marker:   marker,
		tasks:    tasks,
		stats:    stats,
		prober:   prober,
		settings: src,
		log:      log.With("component", "scanner"),
		inFlight: make(chan struct{}, 1),
	}
}

// Progress returns a snapshot of the current or last scan.
func (s *Scanner) Progress() Progress {
	return s.progress.snapshot()
}

// Scan walks the library once. Only one scan runs at a time; a concurrent
// call returns ErrScanInProgress immediately.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	select {
	case s.inFlight <- struct{}{}:
		defer func() { <-s.inFlight }()
	default:
		return nil, ErrScanInProgress
	}
	return s.run(ctx)
}

// ScanAsync claims the scan slot synchronously, then runs the scan in the
// background. Progress is observable through Progress.
func (s *Scanner) ScanAsync(ctx context.Context) error {
	select {
	case s.inFlight <- struct{}{}:
	default:
		return ErrScanInProgress
	}
	go func() {
		defer func() { <-s.inFlight }()
		if _, err := s.run(ctx); err != nil {
			s.log.Error("background scan failed", "error", err)
		}
	}()
	return nil
}

func (s *Scanner) run(ctx context.Context) (*Result, error) {
	s.progress.start()
	defer s.progress.finish()

	snap := s.settings.Current()
	s.log.Info("scan started", "source", s.cfg.SourceDir, "settings_version", snap.Version)

	result := &Result{}
	seen := make(map[string]struct{})

	if err := s.walk(ctx, snap, result, seen); err != nil {
		return nil, err
	}

	s.progress.setPhase(PhaseReconciling)
	if err := s.reconcile(ctx, result, seen); err != nil {
		return nil, err
	}

	if result.MarkedDone > 0 {
		if _, err := s.stats.Recalculate(ctx); err != nil {
			s.log.Warn("failed to recalculate stats after scan", "error", err)
		}
	}

	s.log.Info("scan finished",
		"seen", result.FilesSeen, "queued", result.TasksQueued,
		"requeued", result.TasksRequeued, "marked_done", result.MarkedDone,
		"removed", result.TasksRemoved, "errors", result.Errors)
	return result, nil
}

func (s *Scanner) walk(ctx context.Context, snap settings.Snapshot, result *Result, seen map[string]struct{}) error {
	return filepath.WalkDir(s.cfg.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Warn("walk error", "path", path, "error", err)
			s.count(result, func(r *Result) { r.Errors++ })
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if s.isManagedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.cfg.IsVideoFile(path) {
			return nil
		}

		rel, relErr := filepath.Rel(s.cfg.SourceDir, path)
		if relErr != nil {
			return relErr
		}
		if Ignored(rel, snap.ScanIgnorePatterns) {
			s.count(result, func(r *Result) { r.FilesSkipped++ })
			return nil
		}

		s.count(result, func(r *Result) { r.FilesSeen++ })
		s.progress.setFile(rel)
		seen[path] = struct{}{}

		out, err := s.examine(ctx, path, rel)
		if err != nil {
			s.log.Warn("failed to examine file", "path", path, "error", err)
			s.count(result, func(r *Result) { r.Errors++ })
			return nil
		}
		s.count(result, func(r *Result) {
			switch out {
			case outcomeSkipped:
				r.FilesSkipped++
			case outcomeQueued:
				r.TasksQueued++
			case outcomeRequeued:
				r.TasksRequeued++
			case outcomeMarkedDone:
				r.MarkedDone++
			}
		})
		return nil
	})
}

// isManagedDir keeps the walk out of our own working directories when they
// are nested under the source tree.
func (s *Scanner) isManagedDir(path string) bool {
	return path == s.cfg.TempDir || path == s.cfg.ProcessingDir() || path == s.cfg.TrashDir()
}

// Ignored matches glob patterns against the relative path and the base name.
// Patterns ending in "/*" also match anything below the named directory.
func Ignored(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		// directory prefix patterns like "samples/*" against deeper paths
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "/*")
			if rel != prefix && strings.HasPrefix(rel, prefix+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

// outcome reports what examine did with a file.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeQueued
	outcomeRequeued
	outcomeMarkedDone
)

// examine runs the three change detection levels for one file.
func (s *Scanner) examine(ctx context.Context, path, rel string) (outcome, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return outcomeSkipped, err
	}

	task, err := s.tasks.GetBySourcePath(ctx, path)
	if err != nil {
		return outcomeSkipped, err
	}

	if task == nil {
		return s.examineNew(ctx, path, rel, stat)
	}

	// Level 1: stored size and mtime match means unchanged
	if task.MatchesStat(stat.Size(), stat.ModTime().UnixNano()) {
		return outcomeSkipped, nil
	}

	// Level 2: metadata moved but content may not have
	fp, err := Fingerprint(path)
	if err != nil {
		return outcomeSkipped, err
	}
	if fp == task.Fingerprint {
		// touch or copy changed the mtime only, refresh it and move on
		task.FileModTime = stat.ModTime().UnixNano()
		return outcomeSkipped, s.tasks.Update(ctx, task)
	}

	if task.IsActive() {
		// the worker owns this file right now, next scan will catch up
		s.log.Warn("file changed under an active task", "path", path, "status", task.Status)
		return outcomeSkipped, nil
	}

	// Level 3: the content really changed, ask the file itself
	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return outcomeSkipped, err
	}

	if info.HasMarker(s.marker) {
		s.forceComplete(task, stat, fp, info)
		return outcomeMarkedDone, s.tasks.Update(ctx, task)
	}
	if !info.HasVideo {
		return outcomeSkipped, fmt.Errorf("file has no video stream: %s", path)
	}

	task.MarkRetried()
	task.OriginalSize = stat.Size()
	task.OriginalDuration = info.Duration
	task.FileModTime = stat.ModTime().UnixNano()
	task.Fingerprint = fp
	task.NewSize = 0
	task.NewDuration = 0
	task.ArchivePath = ""
	return outcomeRequeued, s.tasks.Update(ctx, task)
}

// examineNew handles a file with no task record.
func (s *Scanner) examineNew(ctx context.Context, path, rel string, stat os.FileInfo) (outcome, error) {
	fp, err := Fingerprint(path)
	if err != nil {
		return outcomeSkipped, err
	}
	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return outcomeSkipped, err
	}

	task := &models.Task{
		SourcePath:       path,
		RelativePath:     rel,
		OriginalSize:     stat.Size(),
		OriginalDuration: info.Duration,
		FileModTime:      stat.ModTime().UnixNano(),
		Fingerprint:      fp,
	}

	if info.HasMarker(s.marker) {
		task.Status = models.TaskStatusCompleted
		task.NewSize = stat.Size()
		task.NewDuration = info.Duration
		return outcomeMarkedDone, s.tasks.Create(ctx, task)
	}
	if !info.HasVideo {
		return outcomeSkipped, fmt.Errorf("file has no video stream: %s", path)
	}

	task.Status = models.TaskStatusPending
	return outcomeQueued, s.tasks.Create(ctx, task)
}

// forceComplete adopts a marker-bearing file as completed regardless of the
// task's prior state.
func (s *Scanner) forceComplete(task *models.Task, stat os.FileInfo, fp string, info *ffmpeg.MediaInfo) {
	task.Status = models.TaskStatusCompleted
	task.ErrorMessage = ""
	task.OriginalSize = stat.Size()
	task.OriginalDuration = info.Duration
	task.NewSize = stat.Size()
	task.NewDuration = info.Duration
	task.FileModTime = stat.ModTime().UnixNano()
	task.Fingerprint = fp
}

// reconcile drops tasks whose source files vanished. Tasks the worker is
// actively processing are left alone.
func (s *Scanner) reconcile(ctx context.Context, result *Result, seen map[string]struct{}) error {
	all, err := s.tasks.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, task := range all {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := seen[task.SourcePath]; ok {
			continue
		}
		if task.IsActive() {
			continue
		}
		if _, err := os.Stat(task.SourcePath); err == nil || !os.IsNotExist(err) {
			continue
		}
		if err := s.tasks.Delete(ctx, task.ID); err != nil {
			s.log.Warn("failed to remove vanished task", "path", task.SourcePath, "error", err)
			s.count(result, func(r *Result) { r.Errors++ })
			continue
		}
		s.log.Info("removed task for vanished file", "path", task.SourcePath)
		s.count(result, func(r *Result) { r.TasksRemoved++ })
	}
	return nil
}

// count applies a counter update to both the result and the live progress.
func (s *Scanner) count(result *Result, fn func(*Result)) {
	fn(result)
	s.progress.update(func(p *Progress) {
		p.FilesSeen = result.FilesSeen
		p.FilesSkipped = result.FilesSkipped
		p.TasksQueued = result.TasksQueued
		p.TasksRequeued = result.TasksRequeued
		p.MarkedDone = result.MarkedDone
		p.TasksRemoved = result.TasksRemoved
		p.Errors = result.Errors
	})
}
