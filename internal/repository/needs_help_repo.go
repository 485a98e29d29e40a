package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// NeedsHelpFilter narrows at-risk listings.
type NeedsHelpFilter struct {
	TeacherID       *uint
	ClassID         *uint
	Severity        string
	IncludeResolved bool
	// Now anchors the severity filter for open records. Zero means time.Now.
	Now             time.Time
	Page            int
	PageSize        int
}

// NeedsHelpRepository persists at-risk records and their class/teacher links.
type NeedsHelpRepository interface {
	GetByStudent(ctx context.Context, studentID uint) (models.StudentNeedsHelp, error)
	ListByStudents(ctx context.Context, studentIDs []uint) ([]models.StudentNeedsHelp, error)
	Save(ctx context.Context, record *models.StudentNeedsHelp) error
	ReplaceLinks(ctx context.Context, studentID uint, classIDs, teacherIDs []uint) error
	List(ctx context.Context, filter NeedsHelpFilter) ([]models.StudentNeedsHelp, int64, error)
	CountUnresolved(ctx context.Context, studentIDs []uint) (int64, error)
	Transaction(ctx context.Context, fn func(repo NeedsHelpRepository) error) error
}

type needsHelpRepository struct {
	db *gorm.DB
}

// NewNeedsHelpRepository constructs the at-risk repository.
func NewNeedsHelpRepository(db *gorm.DB) NeedsHelpRepository {
	return &needsHelpRepository{db: db}
}

func (r *needsHelpRepository) GetByStudent(ctx context.Context, studentID uint) (models.StudentNeedsHelp, error) {
	var record models.StudentNeedsHelp
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&record).Error
	return record, err
}

func (r *needsHelpRepository) ListByStudents(ctx context.Context, studentIDs []uint) ([]models.StudentNeedsHelp, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var records []models.StudentNeedsHelp
	err := r.db.WithContext(ctx).Where("student_id IN ?", studentIDs).Find(&records).Error
	return records, err
}

// Save inserts a new record or updates an existing one by primary key.
func (r *needsHelpRepository) Save(ctx context.Context, record *models.StudentNeedsHelp) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *needsHelpRepository) ReplaceLinks(ctx context.Context, studentID uint, classIDs, teacherIDs []uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("student_id = ?", studentID).Delete(&models.StudentNeedsHelpClass{}).Error; err != nil {
		return err
	}
	if err := db.Where("student_id = ?", studentID).Delete(&models.StudentNeedsHelpTeacher{}).Error; err != nil {
		return err
	}

	if len(classIDs) > 0 {
		links := make([]models.StudentNeedsHelpClass, 0, len(classIDs))
		for _, id := range classIDs {
			links = append(links, models.StudentNeedsHelpClass{StudentID: studentID, ClassID: id})
		}
		if err := db.Create(&links).Error; err != nil {
			return err
		}
	}

	if len(teacherIDs) > 0 {
		links := make([]models.StudentNeedsHelpTeacher, 0, len(teacherIDs))
		for _, id := range teacherIDs {
			links = append(links, models.StudentNeedsHelpTeacher{StudentID: studentID, TeacherID: id})
		}
		if err := db.Create(&links).Error; err != nil {
			return err
		}
	}

	return nil
}

func (r *needsHelpRepository) List(ctx context.Context, filter NeedsHelpFilter) ([]models.StudentNeedsHelp, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentNeedsHelp{})

	if !filter.IncludeResolved {
		query = query.Where("is_resolved = ?", false)
	}
	if filter.Severity != "" {
		query = query.Where(r.severityCondition(filter))
	}
	if filter.TeacherID != nil {
		linked := r.db.Model(&models.StudentNeedsHelpTeacher{}).Select("student_id").Where("teacher_id = ?", *filter.TeacherID)
		query = query.Where("student_id IN (?)", linked)
	}
	if filter.ClassID != nil {
		linked := r.db.Model(&models.StudentNeedsHelpClass{}).Select("student_id").Where("class_id = ?", *filter.ClassID)
		query = query.Where("student_id IN (?)", linked)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var records []models.StudentNeedsHelp
	if err := query.Order("needs_help_since ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// severityCondition matches open records by onset window so the filter agrees
// with the severity computed at read time. Resolved records keep the severity
// they were closed with.
func (r *needsHelpRepository) severityCondition(filter NeedsHelpFilter) *gorm.DB {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	after, atOrBefore, ok := analytics.OnsetWindow(analytics.Severity(filter.Severity), now)
	if !ok {
		return r.db.Where("severity = ?", filter.Severity)
	}

	open := r.db.Where("is_resolved = ?", false)
	if after != nil {
		open = open.Where("needs_help_since > ?", *after)
	}
	if atOrBefore != nil {
		open = open.Where("needs_help_since <= ?", *atOrBefore)
	}
	return r.db.Where(open).Or("is_resolved = ? AND severity = ?", true, filter.Severity)
}

// CountUnresolved counts open records, optionally restricted to the given students.
func (r *needsHelpRepository) CountUnresolved(ctx context.Context, studentIDs []uint) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentNeedsHelp{}).Where("is_resolved = ?", false)
	if studentIDs != nil {
		if len(studentIDs) == 0 {
			return 0, nil
		}
		query = query.Where("student_id IN ?", studentIDs)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *needsHelpRepository) Transaction(ctx context.Context, fn func(repo NeedsHelpRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewNeedsHelpRepository(tx))
	})
}
