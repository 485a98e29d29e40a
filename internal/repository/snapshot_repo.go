package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SnapshotRepository appends and reads school statistics snapshots.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.SchoolStatsSnapshot) error
	ListRecent(ctx context.Context, snapshotType string, limit int) ([]models.SchoolStatsSnapshot, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository constructs the snapshot repository.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.SchoolStatsSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// ListRecent returns the newest snapshots of a type in chronological order.
func (r *snapshotRepository) ListRecent(ctx context.Context, snapshotType string, limit int) ([]models.SchoolStatsSnapshot, error) {
	query := r.db.WithContext(ctx).Model(&models.SchoolStatsSnapshot{})
	if snapshotType != "" {
		query = query.Where("snapshot_type = ?", snapshotType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.SchoolStatsSnapshot
	if err := query.Order("captured_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *snapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("captured_at < ?", cutoff).Delete(&models.SchoolStatsSnapshot{})
	return result.RowsAffected, result.Error
}
