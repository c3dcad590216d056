package models

// ProcessingStats is the cumulative space-savings aggregate, cached as a
// single row for O(1) reads. It is incremented on task completion and
// decremented on rollback, and must always equal the sum over non-rolled-back
// completed tasks of (original_size - new_size).
type ProcessingStats struct {
	BaseModel

	// TotalSavedBytes is the cumulative size reduction across completions.
	TotalSavedBytes int64 `json:"total_saved_bytes"`

	// TotalProcessedFiles is the count of currently-completed conversions.
	TotalProcessedFiles int64 `json:"total_processed_files"`
}

// TableName returns the table name for ProcessingStats.
func (ProcessingStats) TableName() string {
	return "processing_stats"
}
