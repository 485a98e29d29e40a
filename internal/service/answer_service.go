package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
)

var (
	// ErrAssignmentNotVisible indicates the assignment is inactive or not given to the student.
	ErrAssignmentNotVisible = errors.New("assignment is not available to this student")
	// ErrQuestionNotFound indicates the question does not belong to the assignment.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrEmptyAnswer indicates nothing remained after sanitising the answer.
	ErrEmptyAnswer = errors.New("answer must not be empty")
)

// AnswerService grades and stores student answers.
type AnswerService interface {
	Submit(ctx context.Context, studentID uint, req dto.AnswerSubmitRequest) (dto.AnswerResponse, error)
}

type answerService struct {
	assignments repository.AssignmentRepository
	progress    repository.ProgressRepository
	statistics  StatisticsService
	evaluator   ai.Evaluator
	fallback    ai.Evaluator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnswerService constructs the answer service. A nil evaluator grades every answer
// with the heuristic.
func NewAnswerService(
	assignments repository.AssignmentRepository,
	progress repository.ProgressRepository,
	statistics StatisticsService,
	evaluator ai.Evaluator,
	validate *validator.Validate,
	logger zerolog.Logger,
) AnswerService {
	return &answerService{
		assignments: assignments,
		progress:    progress,
		statistics:  statistics,
		evaluator:   evaluator,
		fallback:    ai.HeuristicEvaluator{},
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "answer_service").Logger(),
		now:         time.Now,
	}
}

func (s *answerService) Submit(ctx context.Context, studentID uint, req dto.AnswerSubmitRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnswerResponse{}, err
	}

	answer := strings.TrimSpace(s.sanitizer.Sanitize(req.Answer))
	if answer == "" {
		return dto.AnswerResponse{}, ErrEmptyAnswer
	}

	visible, err := s.assignments.IsVisibleToStudent(ctx, req.AssignmentID, studentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	if !visible {
		return dto.AnswerResponse{}, ErrAssignmentNotVisible
	}

	assignment, err := s.assignments.GetByID(ctx, req.AssignmentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	question, err := s.progress.GetQuestion(ctx, req.AssignmentID, req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerResponse{}, err
	}

	input := ai.AnswerInput{
		AssignmentTitle: assignment.Title,
		Question:        question.Prompt,
		ExpectedAnswer:  question.ExpectedAnswer,
		Answer:          answer,
	}
	result, source := s.evaluate(ctx, input)

	record := models.Progress{
		StudentID:        studentID,
		AssignmentID:     req.AssignmentID,
		QuestionID:       req.QuestionID,
		Answer:           answer,
		IsCompleted:      true,
		IsCorrect:        result.Correct,
		Feedback:         strings.TrimSpace(s.sanitizer.Sanitize(result.Feedback)),
		EvaluationSource: source,
		SubmittedAt:      s.now().UTC(),
	}
	if err := s.progress.Upsert(ctx, &record); err != nil {
		return dto.AnswerResponse{}, fmt.Errorf("store answer: %w", err)
	}

	if _, err := s.statistics.RecalculateAssignment(ctx, req.AssignmentID); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", req.AssignmentID).Msg("failed to refresh assignment statistics")
	}
	if _, err := s.statistics.RecalculateStudent(ctx, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to refresh student statistics")
	}

	return dto.NewAnswerResponse(record), nil
}

// evaluate asks the configured evaluator once and falls back to the heuristic on any failure.
func (s *answerService) evaluate(ctx context.Context, input ai.AnswerInput) (ai.EvaluationResult, string) {
	if s.evaluator != nil {
		result, err := s.evaluator.Evaluate(ctx, input)
		if err == nil {
			observability.AnswerEvaluations().WithLabelValues(models.EvaluationSourceAI).Inc()
			return result, models.EvaluationSourceAI
		}
		s.logger.Warn().Err(err).Msg("ai evaluation failed, using heuristic")
	}

	result, _ := s.fallback.Evaluate(ctx, input)
	observability.AnswerEvaluations().WithLabelValues(models.EvaluationSourceHeuristic).Inc()
	return result, models.EvaluationSourceHeuristic
}
