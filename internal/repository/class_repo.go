package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ClassRepository exposes classes and their enrolments.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
	ListIDs(ctx context.Context) ([]uint, error)
	Count(ctx context.Context) (int64, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Class, error)
	ListForStudent(ctx context.Context, studentID uint) ([]models.Class, error)
	StudentIDs(ctx context.Context, classIDs ...uint) ([]uint, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Class{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *classRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Class{}).Count(&count).Error
	return count, err
}

func (r *classRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Class, error) {
	var classes []models.Class
	err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("id ASC").Find(&classes).Error
	return classes, err
}

func (r *classRepository) ListForStudent(ctx context.Context, studentID uint) ([]models.Class, error) {
	var classes []models.Class
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.ClassStudent{}).Select("class_id").Where("student_id = ?", studentID)).
		Order("id ASC").
		Find(&classes).Error
	return classes, err
}

// StudentIDs returns the distinct students enrolled in any of the classes.
func (r *classRepository) StudentIDs(ctx context.Context, classIDs ...uint) ([]uint, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}

	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.ClassStudent{}).
		Distinct("student_id").
		Where("class_id IN ?", classIDs).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	return ids, err
}
