package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AnswerTally is a raw count of completed and correct progress rows.
type AnswerTally struct {
	Total   int
	Correct int
}

// ProgressRepository persists student answers.
type ProgressRepository interface {
	Upsert(ctx context.Context, progress *models.Progress) error
	ListByStudent(ctx context.Context, studentID uint) ([]models.Progress, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Progress, error)
	TallyForClass(ctx context.Context, classID uint) (AnswerTally, error)
	GetQuestion(ctx context.Context, assignmentID, questionID uint) (models.Question, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository builds a progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// Upsert stores the attempt, overwriting an earlier answer to the same question.
func (r *progressRepository) Upsert(ctx context.Context, progress *models.Progress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "assignment_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answer", "is_completed", "is_correct", "feedback", "evaluation_source", "submitted_at", "updated_at",
		}),
	}).Create(progress).Error
}

func (r *progressRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Progress, error) {
	var rows []models.Progress
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("submitted_at ASC").Find(&rows).Error
	return rows, err
}

func (r *progressRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Progress, error) {
	var rows []models.Progress
	err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).Order("submitted_at ASC").Find(&rows).Error
	return rows, err
}

// TallyForClass counts completed answers given by class members to the class's assignments.
func (r *progressRepository) TallyForClass(ctx context.Context, classID uint) (AnswerTally, error) {
	members := r.db.Model(&models.ClassStudent{}).Select("student_id").Where("class_id = ?", classID)
	assignments := r.db.Model(&models.Assignment{}).Select("id").Where("class_id = ?", classID)

	var tally AnswerTally
	err := r.db.WithContext(ctx).
		Model(&models.Progress{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct").
		Where("is_completed = ?", true).
		Where("student_id IN (?)", members).
		Where("assignment_id IN (?)", assignments).
		Scan(&tally).Error
	return tally, err
}

func (r *progressRepository) GetQuestion(ctx context.Context, assignmentID, questionID uint) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Where("id = ? AND assignment_id = ?", questionID, assignmentID).
		First(&question).Error
	return question, err
}
