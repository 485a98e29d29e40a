package models

import "time"

const (
	// EvaluationSourceAI marks answers graded by the language model.
	EvaluationSourceAI = "ai"
	// EvaluationSourceHeuristic marks answers graded by the substring fallback.
	EvaluationSourceHeuristic = "heuristic"
)

// Progress records one student's attempt at one question. Resubmissions overwrite the row.
type Progress struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StudentID        uint      `gorm:"not null;uniqueIndex:idx_progress_attempt,priority:1" json:"student_id"`
	AssignmentID     uint      `gorm:"not null;index;uniqueIndex:idx_progress_attempt,priority:2" json:"assignment_id"`
	QuestionID       uint      `gorm:"not null;uniqueIndex:idx_progress_attempt,priority:3" json:"question_id"`
	Answer           string    `gorm:"type:text" json:"answer"`
	IsCompleted      bool      `gorm:"not null;default:false" json:"is_completed"`
	IsCorrect        bool      `gorm:"not null;default:false" json:"is_correct"`
	Feedback         string    `gorm:"type:text" json:"feedback"`
	EvaluationSource string    `gorm:"size:16" json:"evaluation_source"`
	SubmittedAt      time.Time `gorm:"index;not null" json:"submitted_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
