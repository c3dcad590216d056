package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus represents the current status of a transcoding task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting for the worker.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusTranscoding indicates the encoder subprocess is running.
	TaskStatusTranscoding TaskStatus = "transcoding"
	// TaskStatusVerifying indicates the encoded output is being validated.
	TaskStatusVerifying TaskStatus = "verifying"
	// TaskStatusInstalling indicates the original is being archived and the
	// output moved into place.
	TaskStatusInstalling TaskStatus = "installing"
	// TaskStatusCompleted indicates the encoded file replaced the original.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates a pipeline stage failed; a human may retry.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled mid-pipeline.
	TaskStatusCancelled TaskStatus = "cancelled"
	// TaskStatusRolledBack indicates a completed conversion was undone.
	TaskStatusRolledBack TaskStatus = "rolled_back"
)

// ActiveStatuses are the statuses a task holds while the worker owns it.
// At most one task is in any of these at a time.
var ActiveStatuses = []TaskStatus{
	TaskStatusTranscoding,
	TaskStatusVerifying,
	TaskStatusInstalling,
}

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusTranscoding, TaskStatusVerifying,
		TaskStatusInstalling, TaskStatusCompleted, TaskStatusFailed,
		TaskStatusCancelled, TaskStatusRolledBack:
		return true
	}
	return false
}

// Task represents one source file's journey through the transcoding pipeline.
type Task struct {
	BaseModel

	// SourcePath is the absolute path of the live file in the source tree.
	// After a completed install it points at the installed output, which may
	// carry a different extension than the original.
	SourcePath string `gorm:"not null;uniqueIndex;size:4096" json:"source_path"`

	// RelativePath is the original path relative to the source root. It keeps
	// the original file name and drives archive mirroring and rollback.
	RelativePath string `gorm:"not null;size:4096" json:"relative_path"`

	// Status is the task's position in the state machine.
	Status TaskStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// OriginalSize and OriginalDuration describe the source file.
	OriginalSize     int64   `json:"original_size"`
	OriginalDuration float64 `json:"original_duration"`

	// NewSize and NewDuration are populated once an output exists.
	NewSize     int64   `json:"new_size"`
	NewDuration float64 `json:"new_duration"`

	// FileModTime (unix nanoseconds) and Fingerprint are the scanner's stored
	// change-detection signals for the file currently at SourcePath.
	FileModTime int64  `json:"file_mod_time"`
	Fingerprint string `gorm:"size:64" json:"fingerprint,omitempty"`

	// ArchivePath is where the original was moved during install. Set on
	// completion, consumed by rollback.
	ArchivePath string `gorm:"size:4096" json:"archive_path,omitempty"`

	// ErrorMessage carries the failure diagnostic; cleared on retry.
	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	// QueuedAt orders the pending FIFO. Reset on retry so a retried task is
	// serviced after every task that was already waiting.
	QueuedAt time.Time `gorm:"index" json:"queued_at"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// IsActive returns true while the worker owns the task.
func (t *Task) IsActive() bool {
	switch t.Status {
	case TaskStatusTranscoding, TaskStatusVerifying, TaskStatusInstalling:
		return true
	}
	return false
}

// IsTerminal returns true if the task finished its journey. Failed and
// cancelled tasks are terminal until a retry is requested.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusRolledBack:
		return true
	}
	return false
}

// CanRetry returns true if the task may be re-queued.
func (t *Task) CanRetry() bool {
	return t.Status == TaskStatusFailed || t.Status == TaskStatusCancelled
}

// CanRollback returns true if the conversion can be undone.
func (t *Task) CanRollback() bool {
	return t.Status == TaskStatusCompleted
}

// MatchesStat reports whether the file currently at SourcePath still looks
// like what this task last recorded. Completed tasks point at the installed
// file, so its size is compared against NewSize.
func (t *Task) MatchesStat(size, modTimeNanos int64) bool {
	if t.FileModTime != modTimeNanos {
		return false
	}
	if t.Status == TaskStatusCompleted {
		return size == t.NewSize
	}
	return size == t.OriginalSize
}

// SavedBytes returns the size reduction achieved by the conversion.
func (t *Task) SavedBytes() int64 {
	return t.OriginalSize - t.NewSize
}

// MarkTranscoding moves the task into the encoding stage.
func (t *Task) MarkTranscoding() {
	t.Status = TaskStatusTranscoding
}

// MarkVerifying moves the task into the verification stage.
func (t *Task) MarkVerifying() {
	t.Status = TaskStatusVerifying
}

// MarkInstalling moves the task into the install stage.
func (t *Task) MarkInstalling() {
	t.Status = TaskStatusInstalling
}

// MarkCompleted records the installed output and finishes the task.
// installedPath becomes the new live SourcePath.
func (t *Task) MarkCompleted(installedPath, archivePath string, newSize int64, newDuration float64, modTime time.Time) {
	t.Status = TaskStatusCompleted
	t.SourcePath = installedPath
	t.ArchivePath = archivePath
	t.NewSize = newSize
	t.NewDuration = newDuration
	t.FileModTime = modTime.UnixNano()
	t.ErrorMessage = ""
}

// MarkFailed finishes the task with a diagnostic message.
func (t *Task) MarkFailed(message string) {
	t.Status = TaskStatusFailed
	t.ErrorMessage = message
}

// MarkCancelled finishes the task after a cancel request.
func (t *Task) MarkCancelled(reason string) {
	t.Status = TaskStatusCancelled
	t.ErrorMessage = reason
}

// MarkRetried clears the failure and re-queues the task at the back of the
// pending FIFO.
func (t *Task) MarkRetried() {
	t.Status = TaskStatusPending
	t.ErrorMessage = ""
	t.QueuedAt = time.Now()
}

// MarkRolledBack records that the original file was restored.
// originalPath is the pre-conversion source path.
func (t *Task) MarkRolledBack(originalPath string) {
	t.Status = TaskStatusRolledBack
	t.SourcePath = originalPath
	t.ArchivePath = ""
	t.NewSize = 0
	t.NewDuration = 0
}

// Validate performs basic validation on the task.
func (t *Task) Validate() error {
	if t.SourcePath == "" {
		return ErrSourcePathRequired
	}
	if t.RelativePath == "" {
		return ErrRelativePathRequired
	}
	if t.Status != "" && !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the task, generates its ULID,
// and stamps the queue position.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if err := t.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if t.QueuedAt.IsZero() {
		t.QueuedAt = time.Now()
	}
	return t.Validate()
}

// BeforeUpdate is a GORM hook that validates the task before update.
func (t *Task) BeforeUpdate(tx *gorm.DB) error {
	return t.Validate()
}
