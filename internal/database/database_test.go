package database

import (
	"path/filepath"
	"testing"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(path, config.DatabaseConfig{LogLevel: "silent"}, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())

	// Migration is idempotent
	require.NoError(t, db.Migrate())

	// Schema is usable
	task := &models.Task{SourcePath: "/source/a.mkv", RelativePath: "a.mkv", Status: models.TaskStatusPending}
	require.NoError(t, db.Create(task).Error)
	assert.False(t, task.ID.IsZero())

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
