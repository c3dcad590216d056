package models

// LogLevel represents the severity of a task log entry.
type LogLevel string

const (
	// LogLevelInfo is routine pipeline progress.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarning is a recoverable anomaly.
	LogLevelWarning LogLevel = "warning"
	// LogLevelError is a stage failure.
	LogLevelError LogLevel = "error"
)

// TaskLog is one entry in a task's append-only log stream. Entries are
// produced by every pipeline stage and never mutated after append.
type TaskLog struct {
	BaseModel

	// TaskID scopes the entry to a single task.
	TaskID ULID `gorm:"not null;type:varchar(26);index" json:"task_id"`

	// Level is the entry severity.
	Level LogLevel `gorm:"not null;default:'info';size:10" json:"level"`

	// Message is the human-readable log text.
	Message string `gorm:"not null;size:4096" json:"message"`
}

// TableName returns the table name for TaskLog.
func (TaskLog) TableName() string {
	return "task_logs"
}
