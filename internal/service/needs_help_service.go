package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/events"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

var (
	// ErrNeedsHelpNotFound indicates the student has no at-risk record.
	ErrNeedsHelpNotFound = errors.New("needs-help record not found")
	// ErrNeedsHelpResolved indicates the record was already resolved.
	ErrNeedsHelpResolved = errors.New("needs-help record already resolved")
)

// ClassificationReport summarises one classifier pass.
type ClassificationReport struct {
	Evaluated    int `json:"evaluated"`
	Flagged      int `json:"flagged"`
	NewlyFlagged int `json:"newly_flagged"`
	Resolved     int `json:"resolved"`
	Failed       int `json:"failed"`
}

// NeedsHelpService runs the at-risk classifier and manages its records.
type NeedsHelpService interface {
	RunClassification(ctx context.Context) (ClassificationReport, error)
	List(ctx context.Context, req dto.NeedsHelpListRequest) (dto.NeedsHelpListResponse, error)
	GetForStudent(ctx context.Context, studentID uint) (dto.NeedsHelpResponse, error)
	Resolve(ctx context.Context, studentID uint, actor ActivityActor, req dto.ResolveNeedsHelpRequest) (dto.NeedsHelpResponse, error)
}

type needsHelpService struct {
	repo        repository.NeedsHelpRepository
	users       repository.UserRepository
	classes     repository.ClassRepository
	assignments repository.AssignmentRepository
	progress    repository.ProgressRepository
	activity    ActivityRecorder
	publisher   events.Publisher
	cache       *redis.Client
	validator   *validator.Validate
	thresholds  analytics.Thresholds
	logger      zerolog.Logger
	now         func() time.Time
}

// studentEvaluation is the verdict for one student computed outside the write transaction.
type studentEvaluation struct {
	studentID  uint
	assessment analytics.Assessment
	aggregate  analytics.StudentAggregate
	classIDs   []uint
	teacherIDs []uint
}

// NewNeedsHelpService constructs the classifier service.
func NewNeedsHelpService(
	repo repository.NeedsHelpRepository,
	users repository.UserRepository,
	classes repository.ClassRepository,
	assignments repository.AssignmentRepository,
	progress repository.ProgressRepository,
	activity ActivityRecorder,
	publisher events.Publisher,
	cache *redis.Client,
	validate *validator.Validate,
	thresholds analytics.Thresholds,
	logger zerolog.Logger,
) NeedsHelpService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &needsHelpService{
		repo:        repo,
		users:       users,
		classes:     classes,
		assignments: assignments,
		progress:    progress,
		activity:    activity,
		publisher:   publisher,
		cache:       cache,
		validator:   validate,
		thresholds:  thresholds,
		logger:      logger.With().Str("component", "needs_help_service").Logger(),
		now:         time.Now,
	}
}

var needsHelpTracer = otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/needs_help")

// RunClassification evaluates every student and merges the verdicts into the stored
// records in one transaction. A student whose evaluation fails keeps their record.
func (s *needsHelpService) RunClassification(ctx context.Context) (ClassificationReport, error) {
	ctx, span := needsHelpTracer.Start(ctx, "needs_help.classify")
	defer span.End()

	report := ClassificationReport{}
	now := s.now().UTC()

	studentIDs, err := s.users.ListIDsByRole(ctx, models.RoleStudent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_students_failed")
		return report, fmt.Errorf("list students: %w", err)
	}

	evaluations := make([]studentEvaluation, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		evaluation, err := s.evaluate(ctx, studentID, now)
		if err != nil {
			report.Failed++
			s.logger.Error().Err(err).Uint("student_id", studentID).Msg("failed to evaluate student")
			continue
		}
		evaluations = append(evaluations, evaluation)
	}
	report.Evaluated = len(evaluations)

	newlyFlagged := make([]models.StudentNeedsHelp, 0)
	err = s.repo.Transaction(ctx, func(repo repository.NeedsHelpRepository) error {
		ids := make([]uint, 0, len(evaluations))
		for _, evaluation := range evaluations {
			ids = append(ids, evaluation.studentID)
		}
		existing, err := repo.ListByStudents(ctx, ids)
		if err != nil {
			return fmt.Errorf("load needs-help records: %w", err)
		}
		byStudent := make(map[uint]models.StudentNeedsHelp, len(existing))
		for _, record := range existing {
			byStudent[record.StudentID] = record
		}

		for _, evaluation := range evaluations {
			record, found := byStudent[evaluation.studentID]
			open := found && !record.IsResolved

			if !evaluation.assessment.NeedsHelp {
				if !open {
					continue
				}
				resolvedAt := now
				record.IsResolved = true
				record.ResolvedAt = &resolvedAt
				record.Severity = string(analytics.SeverityFor(analytics.DaysBetween(record.NeedsHelpSince, now)))
				if err := repo.Save(ctx, &record); err != nil {
					return fmt.Errorf("resolve student %d: %w", evaluation.studentID, err)
				}
				if err := repo.ReplaceLinks(ctx, evaluation.studentID, nil, nil); err != nil {
					return fmt.Errorf("clear links of student %d: %w", evaluation.studentID, err)
				}
				report.Resolved++
				continue
			}

			since := evaluation.assessment.Since
			if open && record.NeedsHelpSince.Before(since) {
				since = record.NeedsHelpSince
			}
			merged := analytics.Onset(now, since, evaluation.assessment.Reasons)

			if !open {
				record = models.StudentNeedsHelp{ID: record.ID, StudentID: evaluation.studentID, DetectedAt: now}
			}
			record.Reasons = datatypes.JSONSlice[string](analytics.ReasonStrings(merged.Reasons))
			record.Severity = string(merged.Severity)
			record.NeedsHelpSince = merged.Since
			record.CompletionRate = evaluation.aggregate.CompletionRate
			record.AverageScore = evaluation.aggregate.AverageScore
			record.OverdueAssignments = evaluation.aggregate.OverdueAssignments
			record.IsResolved = false
			record.ResolvedAt = nil

			if err := repo.Save(ctx, &record); err != nil {
				return fmt.Errorf("store needs-help record of student %d: %w", evaluation.studentID, err)
			}
			if err := repo.ReplaceLinks(ctx, evaluation.studentID, evaluation.classIDs, evaluation.teacherIDs); err != nil {
				return fmt.Errorf("replace links of student %d: %w", evaluation.studentID, err)
			}

			report.Flagged++
			if !open {
				report.NewlyFlagged++
				newlyFlagged = append(newlyFlagged, record)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge_failed")
		return report, err
	}
	if report.Flagged > 0 || report.Resolved > 0 {
		invalidateSchoolOverview(ctx, s.cache, s.logger)
	}

	for _, record := range newlyFlagged {
		payload := map[string]interface{}{
			"student_id":       record.StudentID,
			"severity":         record.Severity,
			"reasons":          []string(record.Reasons),
			"needs_help_since": record.NeedsHelpSince,
		}
		if err := s.publisher.Publish(ctx, events.TypeStudentNeedsHelp, payload); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Msg("failed to publish needs-help event")
		}
	}

	span.SetAttributes(
		attribute.Int("needs_help.evaluated", report.Evaluated),
		attribute.Int("needs_help.flagged", report.Flagged),
		attribute.Int("needs_help.resolved", report.Resolved),
	)
	s.logger.Info().
		Int("evaluated", report.Evaluated).
		Int("flagged", report.Flagged).
		Int("newly_flagged", report.NewlyFlagged).
		Int("resolved", report.Resolved).
		Int("failed", report.Failed).
		Msg("needs-help classification finished")

	return report, nil
}

func (s *needsHelpService) evaluate(ctx context.Context, studentID uint, now time.Time) (studentEvaluation, error) {
	aggregate, visible, err := loadStudentAggregate(ctx, s.assignments, s.progress, studentID, now)
	if err != nil {
		return studentEvaluation{}, err
	}

	classes, err := s.classes.ListForStudent(ctx, studentID)
	if err != nil {
		return studentEvaluation{}, fmt.Errorf("load classes: %w", err)
	}

	classIDs := make([]uint, 0, len(classes))
	teachers := make(map[uint]struct{})
	for _, class := range classes {
		classIDs = append(classIDs, class.ID)
		teachers[class.TeacherID] = struct{}{}
	}
	for _, assignment := range visible {
		teachers[assignment.TeacherID] = struct{}{}
	}

	teacherIDs := make([]uint, 0, len(teachers))
	for id := range teachers {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Slice(teacherIDs, func(i, j int) bool { return teacherIDs[i] < teacherIDs[j] })

	return studentEvaluation{
		studentID:  studentID,
		assessment: analytics.Assess(now, aggregate, s.thresholds),
		aggregate:  aggregate,
		classIDs:   classIDs,
		teacherIDs: teacherIDs,
	}, nil
}

func (s *needsHelpService) List(ctx context.Context, req dto.NeedsHelpListRequest) (dto.NeedsHelpListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NeedsHelpListResponse{}, err
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	now := s.now().UTC()
	records, total, err := s.repo.List(ctx, repository.NeedsHelpFilter{
		TeacherID:       req.TeacherID,
		ClassID:         req.ClassID,
		Severity:        req.Severity,
		IncludeResolved: req.IncludeResolved,
		Now:             now,
		Page:            req.Page,
		PageSize:        req.PageSize,
	})
	if err != nil {
		return dto.NeedsHelpListResponse{}, err
	}

	items := make([]dto.NeedsHelpResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewNeedsHelpResponse(record, now))
	}

	return dto.NeedsHelpListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(req.PageSize))),
		},
	}, nil
}

func (s *needsHelpService) GetForStudent(ctx context.Context, studentID uint) (dto.NeedsHelpResponse, error) {
	record, err := s.repo.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NeedsHelpResponse{}, ErrNeedsHelpNotFound
		}
		return dto.NeedsHelpResponse{}, err
	}
	return dto.NewNeedsHelpResponse(record, s.now().UTC()), nil
}

// Resolve closes an open record on behalf of a teacher or administrator. The next
// classifier pass reopens it with a fresh onset if the student still matches a rule.
func (s *needsHelpService) Resolve(ctx context.Context, studentID uint, actor ActivityActor, req dto.ResolveNeedsHelpRequest) (dto.NeedsHelpResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NeedsHelpResponse{}, err
	}

	record, err := s.repo.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NeedsHelpResponse{}, ErrNeedsHelpNotFound
		}
		return dto.NeedsHelpResponse{}, err
	}
	if record.IsResolved {
		return dto.NeedsHelpResponse{}, ErrNeedsHelpResolved
	}

	now := s.now().UTC()
	record.IsResolved = true
	record.ResolvedAt = &now
	record.Severity = string(analytics.SeverityFor(analytics.DaysBetween(record.NeedsHelpSince, now)))
	if err := s.repo.Save(ctx, &record); err != nil {
		return dto.NeedsHelpResponse{}, err
	}
	invalidateSchoolOverview(ctx, s.cache, s.logger)

	if s.activity != nil {
		entityID := studentID
		metadata := map[string]interface{}{
			"severity":         record.Severity,
			"needs_help_since": record.NeedsHelpSince,
		}
		if req.Note != "" {
			metadata["note"] = req.Note
		}
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     models.ActivityActionNeedsHelpResolved,
			EntityType: "student",
			EntityID:   &entityID,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to record resolve activity")
		}
	}

	return dto.NewNeedsHelpResponse(record, now), nil
}
