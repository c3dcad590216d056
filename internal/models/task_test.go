package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusIsValid(t *testing.T) {
	for _, s := range []TaskStatus{
		TaskStatusPending, TaskStatusTranscoding, TaskStatusVerifying,
		TaskStatusInstalling, TaskStatusCompleted, TaskStatusFailed,
		TaskStatusCancelled, TaskStatusRolledBack,
	} {
		assert.True(t, s.IsValid(), "status %s", s)
	}

	assert.False(t, TaskStatus("scanning").IsValid())
	assert.False(t, TaskStatus("").IsValid())
}

func TestTaskStateHelpers(t *testing.T) {
	task := &Task{Status: TaskStatusPending}
	assert.False(t, task.IsActive())
	assert.False(t, task.IsTerminal())
	assert.False(t, task.CanRetry())
	assert.False(t, task.CanRollback())

	for _, s := range ActiveStatuses {
		task.Status = s
		assert.True(t, task.IsActive(), "status %s", s)
		assert.False(t, task.IsTerminal(), "status %s", s)
	}

	task.Status = TaskStatusFailed
	assert.True(t, task.IsTerminal())
	assert.True(t, task.CanRetry())

	task.Status = TaskStatusCancelled
	assert.True(t, task.CanRetry())

	task.Status = TaskStatusCompleted
	assert.True(t, task.CanRollback())
	assert.False(t, task.CanRetry())
}

func TestMarkCompleted(t *testing.T) {
	task := &Task{
		SourcePath:   "/source/show/episode.mp4",
		RelativePath: "show/episode.mp4",
		Status:       TaskStatusInstalling,
		OriginalSize: 1000,
		ErrorMessage: "stale",
	}

	modTime := time.Now()
	task.MarkCompleted("/source/show/episode.mkv", "/temp/trash/show/episode.mp4", 400, 118.7, modTime)

	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, "/source/show/episode.mkv", task.SourcePath)
	assert.Equal(t, "show/episode.mp4", task.RelativePath)
	assert.Equal(t, "/temp/trash/show/episode.mp4", task.ArchivePath)
	assert.Equal(t, int64(600), task.SavedBytes())
	assert.Equal(t, modTime.UnixNano(), task.FileModTime)
	assert.Empty(t, task.ErrorMessage)
}

func TestMarkRetriedClearsErrorAndRequeues(t *testing.T) {
	queued := time.Now().Add(-time.Hour)
	task := &Task{
		Status:       TaskStatusFailed,
		ErrorMessage: "encoder exited with code 1",
		QueuedAt:     queued,
	}

	task.MarkRetried()

	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Empty(t, task.ErrorMessage)
	assert.True(t, task.QueuedAt.After(queued))
}

func TestMarkRolledBack(t *testing.T) {
	task := &Task{
		SourcePath:  "/source/movie.mkv",
		ArchivePath: "/temp/trash/movie.avi",
		Status:      TaskStatusCompleted,
		NewSize:     400,
		NewDuration: 120,
	}

	task.MarkRolledBack("/source/movie.avi")

	assert.Equal(t, TaskStatusRolledBack, task.Status)
	assert.Equal(t, "/source/movie.avi", task.SourcePath)
	assert.Empty(t, task.ArchivePath)
	assert.Zero(t, task.NewSize)
	assert.Zero(t, task.NewDuration)
}

func TestTaskValidate(t *testing.T) {
	task := &Task{}
	require.ErrorIs(t, task.Validate(), ErrSourcePathRequired)

	task.SourcePath = "/source/a.mkv"
	require.ErrorIs(t, task.Validate(), ErrRelativePathRequired)

	task.RelativePath = "a.mkv"
	require.NoError(t, task.Validate())

	task.Status = TaskStatus("bogus")
	require.ErrorIs(t, task.Validate(), ErrInvalidTaskStatus)
}

func TestULIDJSONRoundTrip(t *testing.T) {
	id := NewULID()

	data, err := id.MarshalJSON()
	require.NoError(t, err)

	var decoded ULID
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, id, decoded)

	var zero ULID
	data, err = zero.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
