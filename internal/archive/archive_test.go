package archive

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/settings"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testInstaller(t *testing.T) (*Installer, config.LibraryConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := config.LibraryConfig{
		SourceDir: filepath.Join(root, "source"),
		TempDir:   filepath.Join(root, "temp"),
	}
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.TrashDir(), 0o755))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewInstaller(cfg, ".mkv", log), cfg
}

func trashSnapshot() settings.Snapshot {
	return settings.Snapshot{RuntimeSettings: settings.Defaults(), Version: 1}
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	write(t, src, "hello")

	require.NoError(t, Move(src, dst))
	assert.Equal(t, "hello", read(t, dst))
	assert.NoFileExists(t, src)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "show.mkv")

	got, err := uniquePath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	write(t, path, "x")
	got, err = uniquePath(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "show.1.mkv"), got)

	write(t, got, "x")
	got, err = uniquePath(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "show.2.mkv"), got)
}

func TestInstall_MirrorsRelativePath(t *testing.T) {
	installer, cfg := testInstaller(t)

	source := filepath.Join(cfg.SourceDir, "shows", "s01", "e01.avi")
	write(t, source, "original")
	output := filepath.Join(cfg.TempDir, "e01.mkv")
	write(t, output, "transcoded")

	task := &models.Task{
		SourcePath:   source,
		RelativePath: filepath.Join("shows", "s01", "e01.avi"),
	}

	result, err := installer.Install(task, output, trashSnapshot())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.SourceDir, "shows", "s01", "e01.mkv"), result.InstalledPath)
	assert.Equal(t, "transcoded", read(t, result.InstalledPath))

	assert.Equal(t, filepath.Join(cfg.TrashDir(), "shows", "s01", "e01.avi"), result.ArchivePath)
	assert.Equal(t, "original", read(t, result.ArchivePath))

	assert.NoFileExists(t, source)
	assert.NoFileExists(t, output)
}

func TestInstall_ArchiveStrategy(t *testing.T) {
	installer, cfg := testInstaller(t)
	archiveDir := t.TempDir()

	source := filepath.Join(cfg.SourceDir, "movie.mp4")
	write(t, source, "original")
	output := filepath.Join(cfg.TempDir, "movie.mkv")
	write(t, output, "transcoded")

	snap := trashSnapshot()
	snap.OriginalFileStrategy = settings.StrategyArchive
	snap.ArchiveDir = archiveDir

	task := &models.Task{SourcePath: source, RelativePath: "movie.mp4"}
	result, err := installer.Install(task, output, snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archiveDir, "movie.mp4"), result.ArchivePath)
}

func TestInstall_CollisionGetsSuffix(t *testing.T) {
	installer, cfg := testInstaller(t)

	// A previous run already trashed a file with this relative path
	write(t, filepath.Join(cfg.TrashDir(), "movie.mp4"), "older")

	source := filepath.Join(cfg.SourceDir, "movie.mp4")
	write(t, source, "original")
	output := filepath.Join(cfg.TempDir, "movie.mkv")
	write(t, output, "transcoded")

	task := &models.Task{SourcePath: source, RelativePath: "movie.mp4"}
	result, err := installer.Install(task, output, trashSnapshot())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.TrashDir(), "movie.1.mp4"), result.ArchivePath)
	assert.Equal(t, "older", read(t, filepath.Join(cfg.TrashDir(), "movie.mp4")))
	assert.Equal(t, "original", read(t, result.ArchivePath))
}

func TestRollback_RestoresOriginal(t *testing.T) {
	installer, cfg := testInstaller(t)

	source := filepath.Join(cfg.SourceDir, "shows", "e01.avi")
	write(t, source, "original")
	output := filepath.Join(cfg.TempDir, "e01.mkv")
	write(t, output, "transcoded")

	task := &models.Task{SourcePath: source, RelativePath: filepath.Join("shows", "e01.avi")}
	result, err := installer.Install(task, output, trashSnapshot())
	require.NoError(t, err)

	// Completion updates the task the way the worker does
	task.SourcePath = result.InstalledPath
	task.ArchivePath = result.ArchivePath

	restored, err := installer.Rollback(task)
	require.NoError(t, err)
	assert.Equal(t, source, restored)
	assert.Equal(t, "original", read(t, source))
	assert.NoFileExists(t, result.InstalledPath)
	assert.NoFileExists(t, result.ArchivePath)
}

func TestRollback_MissingArchiveFails(t *testing.T) {
	installer, cfg := testInstaller(t)

	installed := filepath.Join(cfg.SourceDir, "e01.mkv")
	write(t, installed, "transcoded")

	task := &models.Task{
		SourcePath:   installed,
		RelativePath: "e01.avi",
		ArchivePath:  filepath.Join(cfg.TrashDir(), "e01.avi"),
	}

	_, err := installer.Rollback(task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived original is gone")
	// Installed file untouched on failure
	assert.FileExists(t, installed)
}

func TestTrash(t *testing.T) {
	dir := t.TempDir()
	trash := NewTrash(dir)

	info, err := trash.Info()
	require.NoError(t, err)
	assert.Zero(t, info.FileCount)

	write(t, filepath.Join(dir, "shows", "e01.avi"), "12345")
	write(t, filepath.Join(dir, "movie.mp4"), "1234567890")

	entries, err := trash.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	info, err = trash.Info()
	require.NoError(t, err)
	assert.Equal(t, 2, info.FileCount)
	assert.Equal(t, int64(15), info.TotalBytes)

	require.NoError(t, trash.Empty())
	info, err = trash.Info()
	require.NoError(t, err)
	assert.Zero(t, info.FileCount)
	assert.DirExists(t, dir)
}

func TestTrash_MissingDirIsEmpty(t *testing.T) {
	trash := NewTrash(filepath.Join(t.TempDir(), "nope"))
	entries, err := trash.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
