// Package progress tracks the live state of the task the worker is currently
// running. It is purely in-memory: progress of a crashed run is meaningless
// after recovery anyway.
package progress

import (
	"sync"
	"time"

	"github.com/diettube/diettube/internal/ffmpeg"
	"github.com/diettube/diettube/internal/models"
)

// Current describes the task the worker is processing right now.
type Current struct {
	TaskID       models.ULID       `json:"task_id"`
	RelativePath string            `json:"relative_path"`
	Status       models.TaskStatus `json:"status"`
	StartedAt    time.Time         `json:"started_at"`

	Percent        float64 `json:"percent"`
	OutTimeSeconds float64 `json:"out_time_seconds"`
	FPS            float64 `json:"fps"`
	Speed          float64 `json:"speed"`
	ETASeconds     float64 `json:"eta_seconds"`

	Encoder *ffmpeg.ProcessStats `json:"encoder,omitempty"`
}

// Tracker holds the current task progress behind a mutex.
type Tracker struct {
	mu       sync.RWMutex
	current  *Current
	duration float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin records that work on a task has started.
func (t *Tracker) Begin(task *models.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &Current{
		TaskID:       task.ID,
		RelativePath: task.RelativePath,
		Status:       task.Status,
		StartedAt:    time.Now(),
	}
	t.duration = task.OriginalDuration
}

// SetStatus updates the stage of the current task.
func (t *Tracker) SetStatus(status models.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Status = status
	}
}

// Report applies an encoder progress report.
func (t *Tracker) Report(p ffmpeg.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.Percent = p.Percent
	t.current.OutTimeSeconds = p.OutTimeSeconds
	t.current.FPS = p.FPS
	t.current.Speed = p.Speed
	if p.Speed > 0 && t.duration > p.OutTimeSeconds {
		t.current.ETASeconds = (t.duration - p.OutTimeSeconds) / p.Speed
	} else {
		t.current.ETASeconds = 0
	}
}

// SetEncoderStats attaches a resource usage sample of the encoder process.
func (t *Tracker) SetEncoderStats(stats *ffmpeg.ProcessStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Encoder = stats
	}
}

// End clears the tracker when the task leaves the worker.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

// Get returns a copy of the current progress, or nil when the worker is
// idle.
func (t *Tracker) Get() *Current {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return nil
	}
	copy := *t.current
	return &copy
}
