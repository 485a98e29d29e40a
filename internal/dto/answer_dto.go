package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AnswerSubmitRequest is the payload of a student answer.
type AnswerSubmitRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required"`
	QuestionID   uint   `json:"question_id" validate:"required"`
	Answer       string `json:"answer" validate:"required,max=5000"`
}

// AnswerResponse returns the graded attempt.
type AnswerResponse struct {
	AssignmentID     uint      `json:"assignment_id"`
	QuestionID       uint      `json:"question_id"`
	IsCorrect        bool      `json:"is_correct"`
	Feedback         string    `json:"feedback"`
	EvaluationSource string    `json:"evaluation_source"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewAnswerResponse converts a progress row.
func NewAnswerResponse(progress models.Progress) AnswerResponse {
	return AnswerResponse{
		AssignmentID:     progress.AssignmentID,
		QuestionID:       progress.QuestionID,
		IsCorrect:        progress.IsCorrect,
		Feedback:         progress.Feedback,
		EvaluationSource: progress.EvaluationSource,
		SubmittedAt:      progress.SubmittedAt,
	}
}
