package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/diettube/diettube/internal/models"
)

// statsRepo implements StatsRepository using GORM. The aggregate lives in a
// single row created on first use.
type statsRepo struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepo{db: db}
}

// Get retrieves the stats row, creating a zeroed one if none exists.
func (r *statsRepo) Get(ctx context.Context) (*models.ProcessingStats, error) {
	return r.getOrCreate(r.db.WithContext(ctx))
}

func (r *statsRepo) getOrCreate(tx *gorm.DB) (*models.ProcessingStats, error) {
	var stats models.ProcessingStats
	err := tx.First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.ProcessingStats{}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, fmt.Errorf("creating stats row: %w", err)
		}
		return &stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return &stats, nil
}

// AddCompletion records one completed conversion.
func (r *statsRepo) AddCompletion(ctx context.Context, savedBytes int64) error {
	return r.adjust(ctx, savedBytes, 1)
}

// RemoveCompletion reverts one completed conversion (rollback).
func (r *statsRepo) RemoveCompletion(ctx context.Context, savedBytes int64) error {
	return r.adjust(ctx, -savedBytes, -1)
}

func (r *statsRepo) adjust(ctx context.Context, savedDelta, countDelta int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stats, err := r.getOrCreate(tx)
		if err != nil {
			return err
		}
		return tx.Model(stats).UpdateColumns(map[string]any{
			"total_saved_bytes":     gorm.Expr("total_saved_bytes + ?", savedDelta),
			"total_processed_files": gorm.Expr("total_processed_files + ?", countDelta),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("adjusting stats: %w", err)
	}
	return nil
}

// Recalculate rebuilds the aggregate from the task table. The invariant is
// that the cached row always equals the sum over completed tasks of
// (original_size - new_size); this derives the true value and rewrites the
// cache, returning the fresh aggregate.
func (r *statsRepo) Recalculate(ctx context.Context) (*models.ProcessingStats, error) {
	var derived struct {
		Saved int64
		Count int64
	}

	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Select("COALESCE(SUM(original_size - new_size), 0) as saved, COUNT(*) as count").
		Where("status = ?", models.TaskStatusCompleted).
		Scan(&derived).Error
	if err != nil {
		return nil, fmt.Errorf("deriving stats from tasks: %w", err)
	}

	stats, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(stats).UpdateColumns(map[string]any{
		"total_saved_bytes":     derived.Saved,
		"total_processed_files": derived.Count,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("rewriting stats: %w", err)
	}

	stats.TotalSavedBytes = derived.Saved
	stats.TotalProcessedFiles = derived.Count
	return stats, nil
}
