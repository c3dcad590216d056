package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diettube/diettube/internal/models"
)

func TestStatsRepo_AddRemove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()

	stats, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSavedBytes)
	assert.Zero(t, stats.TotalProcessedFiles)

	require.NoError(t, repo.AddCompletion(ctx, 400))
	require.NoError(t, repo.AddCompletion(ctx, 600))

	stats, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stats.TotalSavedBytes)
	assert.Equal(t, int64(2), stats.TotalProcessedFiles)

	require.NoError(t, repo.RemoveCompletion(ctx, 400))

	stats, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(600), stats.TotalSavedBytes)
	assert.Equal(t, int64(1), stats.TotalProcessedFiles)
}

func TestStatsRepo_Recalculate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatsRepository(db)
	taskRepo := NewTaskRepository(db)
	ctx := context.Background()

	done := newTask("/source/a.mkv", models.TaskStatusCompleted)
	done.OriginalSize = 1000
	done.NewSize = 300
	require.NoError(t, taskRepo.Create(ctx, done))

	other := newTask("/source/b.mkv", models.TaskStatusFailed)
	require.NoError(t, taskRepo.Create(ctx, other))

	// Cached counters drifted; recalculation derives them from the task table.
	require.NoError(t, repo.AddCompletion(ctx, 9999))
	stats, err := repo.Recalculate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(700), stats.TotalSavedBytes)
	assert.Equal(t, int64(1), stats.TotalProcessedFiles)

	stats, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(700), stats.TotalSavedBytes)
}

func TestSettingsRepo_BlobRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	_, found, err := repo.GetBlob(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SaveBlob(ctx, `{"video_crf":30}`))

	blob, found, err := repo.GetBlob(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"video_crf":30}`, blob)

	// Upsert replaces
	require.NoError(t, repo.SaveBlob(ctx, `{"video_crf":25}`))
	blob, found, err = repo.GetBlob(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"video_crf":25}`, blob)
}
