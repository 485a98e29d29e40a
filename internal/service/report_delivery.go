package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ReportDelivery hands a weekly report to whatever channel reaches the parent.
type ReportDelivery interface {
	Deliver(ctx context.Context, report models.ParentReport) error
}

// LogReportDelivery is a basic provider that logs reports instead of mailing them.
type LogReportDelivery struct {
	logger zerolog.Logger
}

// NewLogReportDelivery constructs a logging provider.
func NewLogReportDelivery(logger zerolog.Logger) *LogReportDelivery {
	return &LogReportDelivery{logger: logger.With().Str("component", "report_delivery").Logger()}
}

// Deliver logs the report and returns nil to indicate success.
func (l *LogReportDelivery) Deliver(ctx context.Context, report models.ParentReport) error {
	l.logger.Info().
		Uint("student_id", report.StudentID).
		Time("week_start", report.WeekStart).
		Bool("needs_help", report.NeedsHelp).
		Str("report_url", report.ReportURL).
		Msg("parent report delivered")
	return nil
}
