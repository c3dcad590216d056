package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TrashEntry describes one file in the trash.
type TrashEntry struct {
	RelativePath string    `json:"relative_path"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"mod_time"`
}

// TrashInfo summarizes the trash contents.
type TrashInfo struct {
	FileCount  int   `json:"file_count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Trash manages the directory holding processed originals.
type Trash struct {
	dir string
}

// NewTrash creates a trash rooted at dir.
func NewTrash(dir string) *Trash {
	return &Trash{dir: dir}
}

// List returns every file in the trash with its library-relative path.
func (t *Trash) List() ([]TrashEntry, error) {
	var entries []TrashEntry
	err := filepath.WalkDir(t.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == t.dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(t.dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, TrashEntry{
			RelativePath: rel,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}
	return entries, nil
}

// Info returns the file count and total size of the trash.
func (t *Trash) Info() (*TrashInfo, error) {
	entries, err := t.List()
	if err != nil {
		return nil, err
	}
	info := &TrashInfo{FileCount: len(entries)}
	for _, e := range entries {
		info.TotalBytes += e.Size
	}
	return info, nil
}

// Empty deletes everything in the trash and recreates the empty directory.
// Rolling back a task whose original lived here is no longer possible after
// this.
func (t *Trash) Empty() error {
	if err := os.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("failed to empty trash: %w", err)
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("failed to recreate trash directory: %w", err)
	}
	return nil
}
