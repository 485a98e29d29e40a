package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// NeedsHelpListRequest filters the teacher at-risk listing.
type NeedsHelpListRequest struct {
	TeacherID       *uint
	ClassID         *uint
	Severity        string `validate:"omitempty,oneof=CRITICAL WARNING RECENT"`
	IncludeResolved bool
	Page            int
	PageSize        int
}

// NeedsHelpResponse describes one at-risk record. Days and severity are computed
// at read time so they keep advancing between classifier passes.
type NeedsHelpResponse struct {
	StudentID          uint       `json:"student_id"`
	Reasons            []string   `json:"reasons"`
	Severity           string     `json:"severity"`
	DaysNeedingHelp    int        `json:"days_needing_help"`
	NeedsHelpSince     time.Time  `json:"needs_help_since"`
	CompletionRate     float64    `json:"completion_rate"`
	AverageScore       float64    `json:"average_score"`
	OverdueAssignments int        `json:"overdue_assignments"`
	IsResolved         bool       `json:"is_resolved"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	DetectedAt         time.Time  `json:"detected_at"`
}

// NeedsHelpListResponse wraps a page of at-risk records.
type NeedsHelpListResponse struct {
	Items      []NeedsHelpResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// NewNeedsHelpResponse converts a record relative to now.
func NewNeedsHelpResponse(record models.StudentNeedsHelp, now time.Time) NeedsHelpResponse {
	days := analytics.DaysBetween(record.NeedsHelpSince, now)
	severity := string(analytics.SeverityFor(days))
	if record.IsResolved {
		severity = record.Severity
	}

	reasons := []string(record.Reasons)
	if reasons == nil {
		reasons = []string{}
	}

	return NeedsHelpResponse{
		StudentID:          record.StudentID,
		Reasons:            reasons,
		Severity:           severity,
		DaysNeedingHelp:    days,
		NeedsHelpSince:     record.NeedsHelpSince,
		CompletionRate:     record.CompletionRate,
		AverageScore:       record.AverageScore,
		OverdueAssignments: record.OverdueAssignments,
		IsResolved:         record.IsResolved,
		ResolvedAt:         record.ResolvedAt,
		DetectedAt:         record.DetectedAt,
	}
}

// ResolveNeedsHelpRequest carries an optional note for a manual resolution.
type ResolveNeedsHelpRequest struct {
	Note string `json:"note" validate:"omitempty,max=1000"`
}
