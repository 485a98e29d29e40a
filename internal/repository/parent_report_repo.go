package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ParentReportRepository persists weekly parent reports.
type ParentReportRepository interface {
	// CreateIfAbsent inserts the report unless one exists for the same student and week.
	CreateIfAbsent(ctx context.Context, report *models.ParentReport) (bool, error)
	GetForWeek(ctx context.Context, studentID uint, weekStart time.Time) (models.ParentReport, error)
	MarkDelivered(ctx context.Context, id uint, deliveredAt time.Time, reportURL string) error
	ListForStudent(ctx context.Context, studentID uint) ([]models.ParentReport, error)
}

type parentReportRepository struct {
	db *gorm.DB
}

// NewParentReportRepository constructs the parent report repository.
func NewParentReportRepository(db *gorm.DB) ParentReportRepository {
	return &parentReportRepository{db: db}
}

func (r *parentReportRepository) CreateIfAbsent(ctx context.Context, report *models.ParentReport) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "week_start"}},
		DoNothing: true,
	}).Create(report)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *parentReportRepository) GetForWeek(ctx context.Context, studentID uint, weekStart time.Time) (models.ParentReport, error) {
	var report models.ParentReport
	err := r.db.WithContext(ctx).Where("student_id = ? AND week_start = ?", studentID, weekStart).First(&report).Error
	return report, err
}

func (r *parentReportRepository) MarkDelivered(ctx context.Context, id uint, deliveredAt time.Time, reportURL string) error {
	updates := map[string]interface{}{"delivered_at": deliveredAt}
	if reportURL != "" {
		updates["report_url"] = reportURL
	}
	return r.db.WithContext(ctx).Model(&models.ParentReport{}).Where("id = ?", id).Updates(updates).Error
}

func (r *parentReportRepository) ListForStudent(ctx context.Context, studentID uint) ([]models.ParentReport, error) {
	var reports []models.ParentReport
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("week_start DESC").Find(&reports).Error
	return reports, err
}
