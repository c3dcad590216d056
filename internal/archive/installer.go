package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/models"
	"github.com/diettube/diettube/internal/settings"
)

// InstallResult reports where the original and the new file ended up.
type InstallResult struct {
	// InstalledPath is the final location of the transcoded file inside the
	// source tree.
	InstalledPath string
	// ArchivePath is where the original file was moved.
	ArchivePath string
}

// Installer performs the atomic-as-possible swap of transcoded output for
// the original file, and its inverse.
type Installer struct {
	cfg config.LibraryConfig
	ext string
	log *slog.Logger
}

// NewInstaller creates an installer. ext is the output container extension,
// including the leading dot.
func NewInstaller(cfg config.LibraryConfig, ext string, log *slog.Logger) *Installer {
	return &Installer{
		cfg: cfg,
		ext: ext,
		log: log.With("component", "installer"),
	}
}

// archiveRoot picks the destination root for originals from the settings
// snapshot.
func (i *Installer) archiveRoot(snap settings.Snapshot) string {
	if snap.OriginalFileStrategy == settings.StrategyArchive {
		return snap.ArchiveDir
	}
	return i.cfg.TrashDir()
}

// Install moves the original out of the source tree into the trash or
// archive, preserving its library-relative path, then moves the transcoded
// output into the original's place under the output extension. Name
// collisions at the archive destination get a numeric suffix. If the second
// move fails the original stays safely archived and the error is returned;
// nothing is rolled back here, the task records the failure.
func (i *Installer) Install(task *models.Task, outputPath string, snap settings.Snapshot) (*InstallResult, error) {
	archiveDest := filepath.Join(i.archiveRoot(snap), task.RelativePath)
	if err := os.MkdirAll(filepath.Dir(archiveDest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	archiveDest, err := uniquePath(archiveDest)
	if err != nil {
		return nil, err
	}

	if err := Move(task.SourcePath, archiveDest); err != nil {
		return nil, fmt.Errorf("failed to archive original %s: %w", task.SourcePath, err)
	}
	i.log.Info("original archived", "from", task.SourcePath, "to", archiveDest)

	installedPath := replaceExt(task.SourcePath, i.ext)
	if err := Move(outputPath, installedPath); err != nil {
		return nil, fmt.Errorf("failed to install output to %s (original archived at %s): %w",
			installedPath, archiveDest, err)
	}
	i.log.Info("output installed", "path", installedPath)

	return &InstallResult{InstalledPath: installedPath, ArchivePath: archiveDest}, nil
}

// Rollback removes the installed file and restores the archived original to
// its pre-install location in the source tree. A missing archived original is
// an error and leaves the task untouched.
func (i *Installer) Rollback(task *models.Task) (string, error) {
	if task.ArchivePath == "" {
		return "", fmt.Errorf("task has no archived original recorded")
	}
	if _, err := os.Stat(task.ArchivePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("archived original is gone: %s", task.ArchivePath)
		}
		return "", fmt.Errorf("failed to stat archived original %s: %w", task.ArchivePath, err)
	}

	originalPath := filepath.Join(i.cfg.SourceDir, task.RelativePath)
	if err := os.MkdirAll(filepath.Dir(originalPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}

	if err := os.Remove(task.SourcePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove installed file %s: %w", task.SourcePath, err)
	}

	if err := Move(task.ArchivePath, originalPath); err != nil {
		return "", fmt.Errorf("failed to restore original to %s: %w", originalPath, err)
	}
	i.log.Info("task rolled back", "restored", originalPath)

	return originalPath, nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
