package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

const schoolOverviewCacheKey = "statistics:school:overview"

var (
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrClassNotFound indicates the class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrStudentNotFound indicates the user does not exist or is not a student.
	ErrStudentNotFound = errors.New("student not found")
)

// StatisticsService recomputes and serves the stored aggregates.
type StatisticsService interface {
	RecalculateAssignment(ctx context.Context, assignmentID uint) (models.AssignmentStats, error)
	RecalculateStudent(ctx context.Context, studentID uint) (models.StudentStats, error)
	RecalculateClass(ctx context.Context, classID uint) (models.ClassStats, error)
	RecalculateTeacher(ctx context.Context, teacherID uint) (models.TeacherStats, error)
	RecalculateSchool(ctx context.Context) (models.SchoolStats, error)
	RunSweep(ctx context.Context) (dto.SweepReportResponse, error)

	GetAssignmentStatistics(ctx context.Context, assignmentID uint) (models.AssignmentStats, error)
	GetClassStatistics(ctx context.Context, classID uint) (models.ClassStats, error)
	GetStudentStatistics(ctx context.Context, studentID uint) (dto.StudentStatisticsResponse, error)
	GetSchoolOverview(ctx context.Context) (dto.SchoolOverviewResponse, error)
}

// StatisticsRepositories groups the stores the calculator reads from and writes to.
type StatisticsRepositories struct {
	Stats       repository.StatisticsRepository
	Assignments repository.AssignmentRepository
	Progress    repository.ProgressRepository
	Classes     repository.ClassRepository
	Users       repository.UserRepository
	NeedsHelp   repository.NeedsHelpRepository
	Snapshots   repository.SnapshotRepository
}

// RetentionPolicy bounds how long the sweep keeps metric and snapshot history.
type RetentionPolicy struct {
	MetricsDays   int
	SnapshotsDays int
}

type statisticsService struct {
	repos     StatisticsRepositories
	cache     *redis.Client
	cacheTTL  time.Duration
	retention RetentionPolicy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStatisticsService constructs the aggregate calculator.
func NewStatisticsService(repos StatisticsRepositories, cache *redis.Client, ttl time.Duration, retention RetentionPolicy, logger zerolog.Logger) StatisticsService {
	if retention.MetricsDays <= 0 {
		retention.MetricsDays = 90
	}
	if retention.SnapshotsDays <= 0 {
		retention.SnapshotsDays = 365
	}
	return &statisticsService{
		repos:     repos,
		cache:     cache,
		cacheTTL:  ttl,
		retention: retention,
		logger:    logger.With().Str("component", "statistics_service").Logger(),
		now:       time.Now,
	}
}

var statisticsTracer = otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/statistics")

func (s *statisticsService) RecalculateAssignment(ctx context.Context, assignmentID uint) (models.AssignmentStats, error) {
	assignment, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssignmentStats{}, ErrAssignmentNotFound
		}
		return models.AssignmentStats{}, err
	}

	scope, err := s.repos.Assignments.ScopeStudentIDs(ctx, assignment)
	if err != nil {
		return models.AssignmentStats{}, fmt.Errorf("load assignment scope: %w", err)
	}

	counts, err := s.repos.Assignments.QuestionCounts(ctx, []uint{assignment.ID})
	if err != nil {
		return models.AssignmentStats{}, fmt.Errorf("count questions: %w", err)
	}

	progress, err := s.repos.Progress.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return models.AssignmentStats{}, fmt.Errorf("load progress: %w", err)
	}

	facts := analytics.AssignmentFacts{ID: assignment.ID, DueDate: assignment.DueDate, QuestionCount: counts[assignment.ID]}
	aggregate := analytics.SummarizeAssignment(facts, scope, toAnswers(progress))

	stats := models.AssignmentStats{
		AssignmentID:      assignment.ID,
		TotalStudents:     aggregate.TotalStudents,
		CompletedStudents: aggregate.CompletedStudents,
		CompletionRate:    aggregate.CompletionRate,
		AverageScore:      aggregate.AverageScore,
		TotalAnswers:      aggregate.Answers.Total,
		CorrectAnswers:    aggregate.Answers.Correct,
		LastUpdated:       s.now().UTC(),
	}
	if err := s.repos.Stats.UpsertAssignment(ctx, &stats); err != nil {
		return models.AssignmentStats{}, fmt.Errorf("store assignment stats: %w", err)
	}
	return stats, nil
}

func (s *statisticsService) RecalculateStudent(ctx context.Context, studentID uint) (models.StudentStats, error) {
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return models.StudentStats{}, err
	}

	aggregate, _, err := loadStudentAggregate(ctx, s.repos.Assignments, s.repos.Progress, studentID, s.now())
	if err != nil {
		return models.StudentStats{}, err
	}

	stats := models.StudentStats{
		StudentID:            studentID,
		TotalAssignments:     aggregate.TotalAssignments,
		CompletedAssignments: aggregate.CompletedAssignments,
		OverdueAssignments:   aggregate.OverdueAssignments,
		CompletedOverdue:     aggregate.CompletedOverdue,
		TotalAnswers:         aggregate.Answers.Total,
		CorrectAnswers:       aggregate.Answers.Correct,
		AverageScore:         aggregate.AverageScore,
		CompletionRate:       aggregate.CompletionRate,
		LastActivityAt:       aggregate.LastActivityAt,
		LastUpdated:          s.now().UTC(),
	}
	if err := s.repos.Stats.UpsertStudent(ctx, &stats); err != nil {
		return models.StudentStats{}, fmt.Errorf("store student stats: %w", err)
	}
	return stats, nil
}

func (s *statisticsService) RecalculateClass(ctx context.Context, classID uint) (models.ClassStats, error) {
	if _, err := s.repos.Classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ClassStats{}, ErrClassNotFound
		}
		return models.ClassStats{}, err
	}

	members, err := s.repos.Classes.StudentIDs(ctx, classID)
	if err != nil {
		return models.ClassStats{}, fmt.Errorf("load class members: %w", err)
	}

	summaries, err := s.studentSummaries(ctx, members)
	if err != nil {
		return models.ClassStats{}, err
	}

	assignmentCount, err := s.repos.Assignments.CountActiveByClass(ctx, classID)
	if err != nil {
		return models.ClassStats{}, fmt.Errorf("count class assignments: %w", err)
	}

	tally, err := s.repos.Progress.TallyForClass(ctx, classID)
	if err != nil {
		return models.ClassStats{}, fmt.Errorf("tally class answers: %w", err)
	}

	needingHelp := int64(0)
	if len(members) > 0 {
		needingHelp, err = s.repos.NeedsHelp.CountUnresolved(ctx, members)
		if err != nil {
			return models.ClassStats{}, fmt.Errorf("count students needing help: %w", err)
		}
	}

	aggregate := analytics.SummarizeClass(summaries, int(assignmentCount), analytics.Tally{Total: tally.Total, Correct: tally.Correct}, int(needingHelp))
	stats := models.ClassStats{
		ClassID:               classID,
		TotalStudents:         aggregate.TotalStudents,
		TotalAssignments:      aggregate.TotalAssignments,
		AverageCompletionRate: aggregate.AverageCompletionRate,
		AverageScore:          aggregate.AverageScore,
		TotalAnswers:          aggregate.Answers.Total,
		CorrectAnswers:        aggregate.Answers.Correct,
		StudentsNeedingHelp:   aggregate.StudentsNeedingHelp,
		LastUpdated:           s.now().UTC(),
	}
	if err := s.repos.Stats.UpsertClass(ctx, &stats); err != nil {
		return models.ClassStats{}, fmt.Errorf("store class stats: %w", err)
	}
	return stats, nil
}

func (s *statisticsService) RecalculateTeacher(ctx context.Context, teacherID uint) (models.TeacherStats, error) {
	classes, err := s.repos.Classes.ListByTeacher(ctx, teacherID)
	if err != nil {
		return models.TeacherStats{}, fmt.Errorf("load teacher classes: %w", err)
	}

	students := 0
	if len(classes) > 0 {
		classIDs := make([]uint, 0, len(classes))
		for _, class := range classes {
			classIDs = append(classIDs, class.ID)
		}
		studentIDs, err := s.repos.Classes.StudentIDs(ctx, classIDs...)
		if err != nil {
			return models.TeacherStats{}, fmt.Errorf("load teacher students: %w", err)
		}
		students = len(studentIDs)
	}

	assignments, err := s.repos.Assignments.ListByTeacher(ctx, teacherID)
	if err != nil {
		return models.TeacherStats{}, fmt.Errorf("load teacher assignments: %w", err)
	}

	ids := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.ID)
	}
	rows, err := s.repos.Stats.ListAssignments(ctx, ids)
	if err != nil {
		return models.TeacherStats{}, fmt.Errorf("load assignment stats: %w", err)
	}
	byAssignment := make(map[uint]models.AssignmentStats, len(rows))
	for _, row := range rows {
		byAssignment[row.AssignmentID] = row
	}

	summaries := make([]analytics.AssignmentSummary, 0, len(assignments))
	for _, assignment := range assignments {
		row := byAssignment[assignment.ID]
		summaries = append(summaries, analytics.AssignmentSummary{
			Active:         assignment.IsActive,
			CompletionRate: row.CompletionRate,
			Answers:        analytics.Tally{Total: row.TotalAnswers, Correct: row.CorrectAnswers},
		})
	}

	aggregate := analytics.SummarizeTeacher(len(classes), students, summaries)
	stats := models.TeacherStats{
		TeacherID:             teacherID,
		TotalClasses:          aggregate.TotalClasses,
		TotalStudents:         aggregate.TotalStudents,
		TotalAssignments:      aggregate.TotalAssignments,
		ActiveAssignments:     aggregate.ActiveAssignments,
		AverageCompletionRate: aggregate.AverageCompletionRate,
		AverageScore:          aggregate.AverageScore,
		LastUpdated:           s.now().UTC(),
	}
	if err := s.repos.Stats.UpsertTeacher(ctx, &stats); err != nil {
		return models.TeacherStats{}, fmt.Errorf("store teacher stats: %w", err)
	}
	return stats, nil
}

func (s *statisticsService) RecalculateSchool(ctx context.Context) (models.SchoolStats, error) {
	counts, err := s.schoolCounts(ctx)
	if err != nil {
		return models.SchoolStats{}, err
	}

	rows, err := s.repos.Stats.ListAllStudents(ctx)
	if err != nil {
		return models.SchoolStats{}, fmt.Errorf("load student stats: %w", err)
	}
	summaries := make([]analytics.StudentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, studentSummary(row))
	}

	aggregate := analytics.SummarizeSchool(counts, summaries)
	stats := models.SchoolStats{
		ID:                    models.SchoolStatsID,
		TotalStudents:         aggregate.Students,
		TotalTeachers:         aggregate.Teachers,
		TotalClasses:          aggregate.Classes,
		TotalAssignments:      aggregate.Assignments,
		ActiveAssignments:     aggregate.ActiveAssignments,
		AverageCompletionRate: aggregate.AverageCompletionRate,
		AverageScore:          aggregate.AverageScore,
		StudentsNeedingHelp:   aggregate.NeedingHelp,
		LastUpdated:           s.now().UTC(),
	}
	if err := s.repos.Stats.UpsertSchool(ctx, &stats); err != nil {
		return models.SchoolStats{}, fmt.Errorf("store school stats: %w", err)
	}

	s.invalidateOverview(ctx)
	return stats, nil
}

// RunSweep recomputes every aggregate bottom-up and then purges expired history.
// Listing failures abort the sweep; a failing entity is logged and skipped.
func (s *statisticsService) RunSweep(ctx context.Context) (dto.SweepReportResponse, error) {
	ctx, span := statisticsTracer.Start(ctx, "statistics.sweep")
	defer span.End()

	report := dto.SweepReportResponse{StartedAt: s.now().UTC()}
	fail := func(stage string, err error) (dto.SweepReportResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		report.FinishedAt = s.now().UTC()
		return report, fmt.Errorf("%s: %w", stage, err)
	}

	assignmentIDs, err := s.repos.Assignments.ListIDs(ctx)
	if err != nil {
		return fail("list assignments", err)
	}
	report.Assignments = s.sweepEntities(ctx, "assignment", assignmentIDs, func(id uint) error {
		_, err := s.RecalculateAssignment(ctx, id)
		return err
	})

	studentIDs, err := s.repos.Users.ListIDsByRole(ctx, models.RoleStudent)
	if err != nil {
		return fail("list students", err)
	}
	report.Students = s.sweepEntities(ctx, "student", studentIDs, func(id uint) error {
		_, err := s.RecalculateStudent(ctx, id)
		return err
	})

	classIDs, err := s.repos.Classes.ListIDs(ctx)
	if err != nil {
		return fail("list classes", err)
	}
	report.Classes = s.sweepEntities(ctx, "class", classIDs, func(id uint) error {
		_, err := s.RecalculateClass(ctx, id)
		return err
	})

	teacherIDs, err := s.repos.Users.ListIDsByRole(ctx, models.RoleTeacher)
	if err != nil {
		return fail("list teachers", err)
	}
	report.Teachers = s.sweepEntities(ctx, "teacher", teacherIDs, func(id uint) error {
		_, err := s.RecalculateTeacher(ctx, id)
		return err
	})

	if _, err := s.RecalculateSchool(ctx); err != nil {
		observability.SweepEntityFailures().WithLabelValues("school").Inc()
		s.logger.Error().Err(err).Msg("failed to recalculate school statistics")
	} else {
		report.SchoolUpdated = true
	}

	now := s.now().UTC()
	purged, err := s.repos.Stats.DeleteMetricsBefore(ctx, now.AddDate(0, 0, -s.retention.MetricsDays))
	if err != nil {
		return fail("purge metrics", err)
	}
	report.MetricsPurged = purged

	purged, err = s.repos.Snapshots.DeleteBefore(ctx, now.AddDate(0, 0, -s.retention.SnapshotsDays))
	if err != nil {
		return fail("purge snapshots", err)
	}
	report.SnapshotsPurged = purged

	report.FinishedAt = s.now().UTC()
	span.SetAttributes(
		attribute.Int("statistics.assignments", report.Assignments.Processed),
		attribute.Int("statistics.students", report.Students.Processed),
		attribute.Int("statistics.classes", report.Classes.Processed),
		attribute.Int("statistics.teachers", report.Teachers.Processed),
	)
	s.logger.Info().
		Int("assignments", report.Assignments.Processed).
		Int("students", report.Students.Processed).
		Int("classes", report.Classes.Processed).
		Int("teachers", report.Teachers.Processed).
		Int("failed", report.Assignments.Failed+report.Students.Failed+report.Classes.Failed+report.Teachers.Failed).
		Int64("metrics_purged", report.MetricsPurged).
		Int64("snapshots_purged", report.SnapshotsPurged).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("statistics sweep finished")

	return report, nil
}

func (s *statisticsService) sweepEntities(ctx context.Context, entity string, ids []uint, fn func(id uint) error) dto.EntityCountResponse {
	counts := dto.EntityCountResponse{}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := fn(id); err != nil {
			counts.Failed++
			observability.SweepEntityFailures().WithLabelValues(entity).Inc()
			s.logger.Error().Err(err).Str("entity", entity).Uint("id", id).Msg("failed to recalculate statistics")
			continue
		}
		counts.Processed++
	}
	return counts
}

func (s *statisticsService) GetAssignmentStatistics(ctx context.Context, assignmentID uint) (models.AssignmentStats, error) {
	stats, err := s.repos.Stats.GetAssignment(ctx, assignmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.RecalculateAssignment(ctx, assignmentID)
	}
	return stats, err
}

func (s *statisticsService) GetClassStatistics(ctx context.Context, classID uint) (models.ClassStats, error) {
	stats, err := s.repos.Stats.GetClass(ctx, classID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.RecalculateClass(ctx, classID)
	}
	return stats, err
}

func (s *statisticsService) GetStudentStatistics(ctx context.Context, studentID uint) (dto.StudentStatisticsResponse, error) {
	stats, err := s.repos.Stats.GetStudent(ctx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats, err = s.RecalculateStudent(ctx, studentID)
	}
	if err != nil {
		return dto.StudentStatisticsResponse{}, err
	}

	response := dto.StudentStatisticsResponse{Stats: stats}
	record, err := s.repos.NeedsHelp.GetByStudent(ctx, studentID)
	switch {
	case err == nil && !record.IsResolved:
		view := dto.NewNeedsHelpResponse(record, s.now())
		response.NeedsHelp = &view
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.StudentStatisticsResponse{}, err
	}
	return response, nil
}

// GetSchoolOverview serves the admin dashboard summary, cache first.
func (s *statisticsService) GetSchoolOverview(ctx context.Context) (dto.SchoolOverviewResponse, error) {
	ctx, span := statisticsTracer.Start(ctx, "statistics.school_overview")
	span.SetAttributes(attribute.String("statistics.cache_key", schoolOverviewCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, schoolOverviewCacheKey).Result()
		if err == nil {
			var response dto.SchoolOverviewResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read school overview cache")
			span.RecordError(err)
		}
	}

	stats, err := s.repos.Stats.GetSchool(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats, err = s.RecalculateSchool(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_school_stats_failed")
		return dto.SchoolOverviewResponse{}, err
	}

	records, _, err := s.repos.NeedsHelp.List(ctx, repository.NeedsHelpFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_needs_help_failed")
		return dto.SchoolOverviewResponse{}, err
	}

	now := s.now().UTC()
	response := dto.SchoolOverviewResponse{Stats: stats, GeneratedAt: now}
	for _, record := range records {
		switch analytics.SeverityFor(analytics.DaysBetween(record.NeedsHelpSince, now)) {
		case analytics.SeverityCritical:
			response.NeedingHelp.Critical++
		case analytics.SeverityWarning:
			response.NeedingHelp.Warning++
		default:
			response.NeedingHelp.Recent++
		}
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, schoolOverviewCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store school overview cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}

func (s *statisticsService) invalidateOverview(ctx context.Context) {
	invalidateSchoolOverview(ctx, s.cache, s.logger)
}

// invalidateSchoolOverview drops the cached overview; a nil cache is a no-op.
func invalidateSchoolOverview(ctx context.Context, cache *redis.Client, logger zerolog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Del(ctx, schoolOverviewCacheKey).Err(); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate school overview cache")
	}
}

func (s *statisticsService) ensureStudent(ctx context.Context, studentID uint) error {
	user, err := s.repos.Users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	if !user.IsStudent() {
		return ErrStudentNotFound
	}
	return nil
}

// studentSummaries returns one summary per student; students without a stored
// aggregate count as zero.
func (s *statisticsService) studentSummaries(ctx context.Context, studentIDs []uint) ([]analytics.StudentSummary, error) {
	if len(studentIDs) == 0 {
		return []analytics.StudentSummary{}, nil
	}

	rows, err := s.repos.Stats.ListStudents(ctx, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("load student stats: %w", err)
	}
	byStudent := make(map[uint]models.StudentStats, len(rows))
	for _, row := range rows {
		byStudent[row.StudentID] = row
	}

	summaries := make([]analytics.StudentSummary, 0, len(studentIDs))
	for _, id := range studentIDs {
		summaries = append(summaries, studentSummary(byStudent[id]))
	}
	return summaries, nil
}

func (s *statisticsService) schoolCounts(ctx context.Context) (analytics.SchoolCounts, error) {
	students, err := s.repos.Users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count students: %w", err)
	}
	teachers, err := s.repos.Users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count teachers: %w", err)
	}
	classes, err := s.repos.Classes.Count(ctx)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count classes: %w", err)
	}
	assignments, err := s.repos.Assignments.Count(ctx, false)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count assignments: %w", err)
	}
	active, err := s.repos.Assignments.Count(ctx, true)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count active assignments: %w", err)
	}
	needingHelp, err := s.repos.NeedsHelp.CountUnresolved(ctx, nil)
	if err != nil {
		return analytics.SchoolCounts{}, fmt.Errorf("count students needing help: %w", err)
	}

	return analytics.SchoolCounts{
		Students:          int(students),
		Teachers:          int(teachers),
		Classes:           int(classes),
		Assignments:       int(assignments),
		ActiveAssignments: int(active),
		NeedingHelp:       int(needingHelp),
	}, nil
}

func studentSummary(row models.StudentStats) analytics.StudentSummary {
	return analytics.StudentSummary{
		CompletionRate: row.CompletionRate,
		Answers:        analytics.Tally{Total: row.TotalAnswers, Correct: row.CorrectAnswers},
	}
}

// loadStudentAggregate reduces a student's progress against their visible assignments
// and returns those assignments alongside the aggregate.
func loadStudentAggregate(ctx context.Context, assignments repository.AssignmentRepository, progress repository.ProgressRepository, studentID uint, now time.Time) (analytics.StudentAggregate, []models.Assignment, error) {
	visible, err := assignments.ListVisibleToStudent(ctx, studentID)
	if err != nil {
		return analytics.StudentAggregate{}, nil, fmt.Errorf("load visible assignments: %w", err)
	}

	ids := make([]uint, 0, len(visible))
	for _, assignment := range visible {
		ids = append(ids, assignment.ID)
	}
	counts, err := assignments.QuestionCounts(ctx, ids)
	if err != nil {
		return analytics.StudentAggregate{}, nil, fmt.Errorf("count questions: %w", err)
	}

	facts := make([]analytics.AssignmentFacts, 0, len(visible))
	for _, assignment := range visible {
		facts = append(facts, analytics.AssignmentFacts{ID: assignment.ID, DueDate: assignment.DueDate, QuestionCount: counts[assignment.ID]})
	}

	rows, err := progress.ListByStudent(ctx, studentID)
	if err != nil {
		return analytics.StudentAggregate{}, nil, fmt.Errorf("load progress: %w", err)
	}

	return analytics.SummarizeStudent(now, facts, toAnswers(rows)), visible, nil
}

func toAnswers(rows []models.Progress) []analytics.Answer {
	answers := make([]analytics.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, analytics.Answer{
			StudentID:    row.StudentID,
			AssignmentID: row.AssignmentID,
			QuestionID:   row.QuestionID,
			Completed:    row.IsCompleted,
			Correct:      row.IsCorrect,
			SubmittedAt:  row.SubmittedAt,
		})
	}
	return answers
}
