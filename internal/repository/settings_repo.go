package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diettube/diettube/internal/models"
)

// settingsRepo implements SettingsRepository using GORM.
type settingsRepo struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

// GetBlob retrieves the runtime settings JSON blob. The second return value
// is false when no settings have been persisted yet.
func (r *settingsRepo) GetBlob(ctx context.Context) (string, bool, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", models.RuntimeSettingsKey).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting settings blob: %w", err)
	}
	return setting.Value, true, nil
}

// SaveBlob stores the runtime settings JSON blob, replacing any prior value.
func (r *settingsRepo) SaveBlob(ctx context.Context, blob string) error {
	setting := models.Setting{Key: models.RuntimeSettingsKey, Value: blob}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		return fmt.Errorf("saving settings blob: %w", err)
	}
	return nil
}
