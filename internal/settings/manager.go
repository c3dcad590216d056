package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/diettube/diettube/internal/repository"
)

// Manager owns the current settings snapshot. Reads are lock-free; updates
// validate, persist, and then atomically swap in a new snapshot so a rejected
// update leaves the prior settings fully in effect.
type Manager struct {
	repo repository.SettingsRepository
	log  *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewManager loads persisted settings, falling back to defaults when nothing
// has been stored yet. A malformed stored blob is an error: silently reverting
// to defaults could re-encode a whole library with the wrong parameters.
func NewManager(ctx context.Context, repo repository.SettingsRepository, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		repo: repo,
		log:  log.With("component", "settings"),
	}

	s := Defaults()
	blob, found, err := repo.GetBlob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if found {
		if err := json.Unmarshal([]byte(blob), &s); err != nil {
			return nil, fmt.Errorf("failed to parse stored settings: %w", err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("stored settings are invalid: %w", err)
		}
	}

	m.current.Store(&Snapshot{RuntimeSettings: s.Clone(), Version: 1})
	m.log.Info("settings loaded", "persisted", found, "version", 1)
	return m, nil
}

// Current returns the latest snapshot. The returned value is immutable.
func (m *Manager) Current() Snapshot {
	return *m.current.Load()
}

// Update validates the candidate settings, persists them, and swaps in a new
// snapshot. On any error the previous snapshot remains in effect.
func (m *Manager) Update(ctx context.Context, s RuntimeSettings) (Snapshot, error) {
	if err := s.Validate(); err != nil {
		return m.Current(), fmt.Errorf("invalid settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	blob, err := json.Marshal(s)
	if err != nil {
		return m.Current(), fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := m.repo.SaveBlob(ctx, string(blob)); err != nil {
		return m.Current(), fmt.Errorf("failed to persist settings: %w", err)
	}

	next := &Snapshot{
		RuntimeSettings: s.Clone(),
		Version:         m.current.Load().Version + 1,
	}
	m.current.Store(next)
	m.log.Info("settings updated", "version", next.Version)
	return *next, nil
}
