package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/persistence/models"
)

const maxRecentRuns = 100

// GormSyncRunRepository implements integration.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

var _ integration.SyncRunRepository = (*GormSyncRunRepository)(nil)

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save inserts the run or replaces a previously saved version of it
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models.SyncRunModelFromDomain(run)).Error
}

// Latest returns the most recently started run of kind
func (r *GormSyncRunRepository) Latest(ctx context.Context, kind integration.SyncKind) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("started_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecent returns up to limit runs of kind, newest first
func (r *GormSyncRunRepository) ListRecent(ctx context.Context, kind integration.SyncKind, limit int) ([]*integration.SyncRun, error) {
	if limit <= 0 || limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]*integration.SyncRun, len(rows))
	for i := range rows {
		runs[i] = rows[i].ToDomain()
	}
	return runs, nil
}
