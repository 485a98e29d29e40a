package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// StatisticsRepository stores the current aggregate row of every entity.
type StatisticsRepository interface {
	UpsertAssignment(ctx context.Context, stats *models.AssignmentStats) error
	UpsertStudent(ctx context.Context, stats *models.StudentStats) error
	UpsertClass(ctx context.Context, stats *models.ClassStats) error
	UpsertTeacher(ctx context.Context, stats *models.TeacherStats) error
	UpsertSchool(ctx context.Context, stats *models.SchoolStats) error

	GetAssignment(ctx context.Context, assignmentID uint) (models.AssignmentStats, error)
	GetStudent(ctx context.Context, studentID uint) (models.StudentStats, error)
	GetClass(ctx context.Context, classID uint) (models.ClassStats, error)
	GetTeacher(ctx context.Context, teacherID uint) (models.TeacherStats, error)
	GetSchool(ctx context.Context) (models.SchoolStats, error)

	ListStudents(ctx context.Context, studentIDs []uint) ([]models.StudentStats, error)
	ListAllStudents(ctx context.Context) ([]models.StudentStats, error)
	ListAssignments(ctx context.Context, assignmentIDs []uint) ([]models.AssignmentStats, error)

	RecordMetric(ctx context.Context, metric *models.PerformanceMetric) error
	DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository constructs the statistics store.
func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) upsert(ctx context.Context, key string, value interface{}) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		UpdateAll: true,
	}).Create(value).Error
}

func (r *statisticsRepository) UpsertAssignment(ctx context.Context, stats *models.AssignmentStats) error {
	return r.upsert(ctx, "assignment_id", stats)
}

func (r *statisticsRepository) UpsertStudent(ctx context.Context, stats *models.StudentStats) error {
	return r.upsert(ctx, "student_id", stats)
}

func (r *statisticsRepository) UpsertClass(ctx context.Context, stats *models.ClassStats) error {
	return r.upsert(ctx, "class_id", stats)
}

func (r *statisticsRepository) UpsertTeacher(ctx context.Context, stats *models.TeacherStats) error {
	return r.upsert(ctx, "teacher_id", stats)
}

func (r *statisticsRepository) UpsertSchool(ctx context.Context, stats *models.SchoolStats) error {
	stats.ID = models.SchoolStatsID
	return r.upsert(ctx, "id", stats)
}

func (r *statisticsRepository) GetAssignment(ctx context.Context, assignmentID uint) (models.AssignmentStats, error) {
	var stats models.AssignmentStats
	err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&stats).Error
	return stats, err
}

func (r *statisticsRepository) GetStudent(ctx context.Context, studentID uint) (models.StudentStats, error) {
	var stats models.StudentStats
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&stats).Error
	return stats, err
}

func (r *statisticsRepository) GetClass(ctx context.Context, classID uint) (models.ClassStats, error) {
	var stats models.ClassStats
	err := r.db.WithContext(ctx).Where("class_id = ?", classID).First(&stats).Error
	return stats, err
}

func (r *statisticsRepository) GetTeacher(ctx context.Context, teacherID uint) (models.TeacherStats, error) {
	var stats models.TeacherStats
	err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).First(&stats).Error
	return stats, err
}

func (r *statisticsRepository) GetSchool(ctx context.Context) (models.SchoolStats, error) {
	var stats models.SchoolStats
	err := r.db.WithContext(ctx).Where("id = ?", models.SchoolStatsID).First(&stats).Error
	return stats, err
}

func (r *statisticsRepository) ListStudents(ctx context.Context, studentIDs []uint) ([]models.StudentStats, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var rows []models.StudentStats
	err := r.db.WithContext(ctx).Where("student_id IN ?", studentIDs).Order("student_id ASC").Find(&rows).Error
	return rows, err
}

func (r *statisticsRepository) ListAllStudents(ctx context.Context) ([]models.StudentStats, error) {
	var rows []models.StudentStats
	err := r.db.WithContext(ctx).Order("student_id ASC").Find(&rows).Error
	return rows, err
}

func (r *statisticsRepository) ListAssignments(ctx context.Context, assignmentIDs []uint) ([]models.AssignmentStats, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	var rows []models.AssignmentStats
	err := r.db.WithContext(ctx).Where("assignment_id IN ?", assignmentIDs).Order("assignment_id ASC").Find(&rows).Error
	return rows, err
}

func (r *statisticsRepository) RecordMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

func (r *statisticsRepository) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("recorded_at < ?", cutoff).Delete(&models.PerformanceMetric{})
	return result.RowsAffected, result.Error
}
