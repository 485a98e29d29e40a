package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AssignmentRepository defines persistence operations for assignments and their scope.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	ListIDs(ctx context.Context) ([]uint, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Assignment, error)
	CountActiveByClass(ctx context.Context, classID uint) (int64, error)
	ListVisibleToStudent(ctx context.Context, studentID uint) ([]models.Assignment, error)
	IsVisibleToStudent(ctx context.Context, assignmentID, studentID uint) (bool, error)
	QuestionCounts(ctx context.Context, assignmentIDs []uint) (map[uint]int, error)
	ScopeStudentIDs(ctx context.Context, assignment models.Assignment) ([]uint, error)
	ListDueForPublication(ctx context.Context, now time.Time) ([]models.Assignment, error)
	Activate(ctx context.Context, id uint) (bool, error)
	Transaction(ctx context.Context, fn func(assignments AssignmentRepository, activity ActivityLogRepository) error) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *assignmentRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *assignmentRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("id ASC").Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) CountActiveByClass(ctx context.Context, classID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("class_id = ? AND is_active = ?", classID, true).
		Count(&count).Error
	return count, err
}

// ListVisibleToStudent returns active assignments given to the student directly or through a class.
func (r *assignmentRepository) ListVisibleToStudent(ctx context.Context, studentID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.visibleQuery(ctx, studentID).Order("assignments.id ASC").Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) IsVisibleToStudent(ctx context.Context, assignmentID, studentID uint) (bool, error) {
	var count int64
	err := r.visibleQuery(ctx, studentID).Where("assignments.id = ?", assignmentID).Count(&count).Error
	return count > 0, err
}

func (r *assignmentRepository) visibleQuery(ctx context.Context, studentID uint) *gorm.DB {
	individual := r.db.Model(&models.AssignmentStudent{}).Select("assignment_id").Where("student_id = ?", studentID)
	classes := r.db.Model(&models.ClassStudent{}).Select("class_id").Where("student_id = ?", studentID)

	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("assignments.is_active = ?", true).
		Where("(assignments.id IN (?) OR assignments.class_id IN (?))", individual, classes)
}

func (r *assignmentRepository) QuestionCounts(ctx context.Context, assignmentIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return counts, nil
	}

	type row struct {
		AssignmentID uint
		Total        int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Select("assignment_id, COUNT(*) AS total").
		Where("assignment_id IN ?", assignmentIDs).
		Group("assignment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, item := range rows {
		counts[item.AssignmentID] = item.Total
	}
	return counts, nil
}

// ScopeStudentIDs returns the union of individually assigned students and members of the assignment's class.
func (r *assignmentRepository) ScopeStudentIDs(ctx context.Context, assignment models.Assignment) ([]uint, error) {
	var individual []uint
	if err := r.db.WithContext(ctx).
		Model(&models.AssignmentStudent{}).
		Where("assignment_id = ?", assignment.ID).
		Pluck("student_id", &individual).Error; err != nil {
		return nil, err
	}

	var members []uint
	if assignment.ClassID != nil {
		if err := r.db.WithContext(ctx).
			Model(&models.ClassStudent{}).
			Where("class_id = ?", *assignment.ClassID).
			Pluck("student_id", &members).Error; err != nil {
			return nil, err
		}
	}

	seen := make(map[uint]struct{}, len(individual)+len(members))
	scope := make([]uint, 0, len(individual)+len(members))
	for _, id := range append(individual, members...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		scope = append(scope, id)
	}
	return scope, nil
}

func (r *assignmentRepository) ListDueForPublication(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("is_active = ?", false).
		Where("scheduled_publish_at IS NOT NULL AND scheduled_publish_at <= ?", now).
		Order("scheduled_publish_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// Activate flips an inactive assignment to active. It reports false when another
// writer already activated the row.
func (r *assignmentRepository) Activate(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND is_active = ?", id, false).
		Update("is_active", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assignmentRepository) Transaction(ctx context.Context, fn func(assignments AssignmentRepository, activity ActivityLogRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewAssignmentRepository(tx), NewActivityLogRepository(tx))
	})
}
