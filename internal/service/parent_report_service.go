package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// ReportArchiver stores a rendered report and returns its public URL.
type ReportArchiver interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ParentReportRun summarises one weekly report run.
type ParentReportRun struct {
	WeekStart time.Time `json:"week_start"`
	Created   int       `json:"created"`
	Delivered int       `json:"delivered"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// ParentReportService builds and delivers the weekly parent reports.
type ParentReportService interface {
	Run(ctx context.Context) (ParentReportRun, error)
}

type parentReportService struct {
	reports    repository.ParentReportRepository
	users      repository.UserRepository
	stats      repository.StatisticsRepository
	needsHelp  repository.NeedsHelpRepository
	statistics StatisticsService
	delivery   ReportDelivery
	archiver   ReportArchiver
	logger     zerolog.Logger
	now        func() time.Time
}

// NewParentReportService constructs the weekly report job. The archiver is optional.
func NewParentReportService(
	reports repository.ParentReportRepository,
	users repository.UserRepository,
	stats repository.StatisticsRepository,
	needsHelp repository.NeedsHelpRepository,
	statistics StatisticsService,
	delivery ReportDelivery,
	archiver ReportArchiver,
	logger zerolog.Logger,
) ParentReportService {
	component := logger.With().Str("component", "parent_report_service").Logger()
	if delivery == nil {
		delivery = NewLogReportDelivery(logger)
	}
	return &parentReportService{
		reports:    reports,
		users:      users,
		stats:      stats,
		needsHelp:  needsHelp,
		statistics: statistics,
		delivery:   delivery,
		archiver:   archiver,
		logger:     component,
		now:        time.Now,
	}
}

// Run creates at most one report per student and week. Reports that exist but were
// never delivered are retried; delivered ones are skipped.
func (s *parentReportService) Run(ctx context.Context) (ParentReportRun, error) {
	now := s.now().UTC()
	run := ParentReportRun{WeekStart: startOfWeek(now)}

	students, err := s.users.ListStudentsWithParents(ctx)
	if err != nil {
		return run, fmt.Errorf("list students with parents: %w", err)
	}

	for _, student := range students {
		if ctx.Err() != nil {
			return run, ctx.Err()
		}

		report, created, err := s.prepare(ctx, student, run.WeekStart)
		if err != nil {
			run.Failed++
			s.logger.Error().Err(err).Uint("student_id", student.ID).Msg("failed to prepare parent report")
			continue
		}
		if created {
			run.Created++
		}
		if report.DeliveredAt != nil {
			run.Skipped++
			continue
		}

		if err := s.deliver(ctx, &report, now); err != nil {
			run.Failed++
			s.logger.Error().Err(err).Uint("student_id", student.ID).Msg("failed to deliver parent report")
			continue
		}
		run.Delivered++
	}

	s.logger.Info().
		Time("week_start", run.WeekStart).
		Int("created", run.Created).
		Int("delivered", run.Delivered).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("parent reports finished")
	return run, nil
}

func (s *parentReportService) prepare(ctx context.Context, student models.User, weekStart time.Time) (models.ParentReport, bool, error) {
	stats, err := s.stats.GetStudent(ctx, student.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats, err = s.statistics.RecalculateStudent(ctx, student.ID)
	}
	if err != nil {
		return models.ParentReport{}, false, fmt.Errorf("load student stats: %w", err)
	}

	report := models.ParentReport{
		StudentID:            student.ID,
		WeekStart:            weekStart,
		ParentEmail:          student.ParentEmail,
		CompletedAssignments: stats.CompletedAssignments,
		TotalAssignments:     stats.TotalAssignments,
		CompletionRate:       stats.CompletionRate,
		AverageScore:         stats.AverageScore,
	}

	record, err := s.needsHelp.GetByStudent(ctx, student.ID)
	switch {
	case err == nil && !record.IsResolved:
		report.NeedsHelp = true
		report.Severity = record.Severity
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return models.ParentReport{}, false, fmt.Errorf("load needs-help record: %w", err)
	}
	report.Summary = renderParentReport(student, report, []string(record.Reasons))

	created, err := s.reports.CreateIfAbsent(ctx, &report)
	if err != nil {
		return models.ParentReport{}, false, fmt.Errorf("store report: %w", err)
	}
	if created {
		return report, true, nil
	}

	existing, err := s.reports.GetForWeek(ctx, student.ID, weekStart)
	if err != nil {
		return models.ParentReport{}, false, fmt.Errorf("load existing report: %w", err)
	}
	return existing, false, nil
}

func (s *parentReportService) deliver(ctx context.Context, report *models.ParentReport, now time.Time) error {
	if s.archiver != nil && report.ReportURL == "" {
		name := fmt.Sprintf("report-%d-%s.txt", report.StudentID, report.WeekStart.Format("2006-01-02"))
		url, err := s.archiver.Upload(ctx, name, strings.NewReader(report.Summary))
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", report.StudentID).Msg("failed to archive parent report")
		} else {
			report.ReportURL = url
		}
	}

	if err := s.delivery.Deliver(ctx, *report); err != nil {
		return err
	}

	if err := s.reports.MarkDelivered(ctx, report.ID, now, report.ReportURL); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	report.DeliveredAt = &now
	return nil
}

func renderParentReport(student models.User, report models.ParentReport, reasons []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly progress report for %s\n", student.Name)
	fmt.Fprintf(&b, "Week of %s\n\n", report.WeekStart.Format("2 January 2006"))
	fmt.Fprintf(&b, "Assignments completed: %d of %d (%.2f%%)\n", report.CompletedAssignments, report.TotalAssignments, report.CompletionRate)
	fmt.Fprintf(&b, "Average score: %.2f%%\n", report.AverageScore)

	if !report.NeedsHelp {
		b.WriteString("\nYour child is on track. Keep encouraging them!\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nYour child's teachers have flagged them as needing help (%s).\n", strings.ToLower(report.Severity))
	for _, reason := range reasons {
		fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(reason, "_", " "))
	}
	return b.String()
}

func startOfWeek(t time.Time) time.Time {
	utc := t.UTC()
	weekday := int(utc.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := utc.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
