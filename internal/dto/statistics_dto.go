package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SweepReportResponse reports a full statistics sweep.
type SweepReportResponse struct {
	Assignments     EntityCountResponse `json:"assignments"`
	Students        EntityCountResponse `json:"students"`
	Classes         EntityCountResponse `json:"classes"`
	Teachers        EntityCountResponse `json:"teachers"`
	SchoolUpdated   bool                `json:"school_updated"`
	MetricsPurged   int64               `json:"metrics_purged"`
	SnapshotsPurged int64               `json:"snapshots_purged"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      time.Time           `json:"finished_at"`
}

// EntityCountResponse counts processed and failed entities of one kind.
type EntityCountResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// SchoolOverviewResponse is the admin dashboard summary.
type SchoolOverviewResponse struct {
	Stats       models.SchoolStats `json:"stats"`
	NeedingHelp NeedsHelpBreakdown `json:"needing_help"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

// NeedsHelpBreakdown counts open at-risk records by severity.
type NeedsHelpBreakdown struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Recent   int `json:"recent"`
}

// TrendPointResponse is one point of a snapshot trend series.
type TrendPointResponse struct {
	CapturedAt            time.Time `json:"captured_at"`
	SnapshotType          string    `json:"snapshot_type"`
	TotalStudents         int       `json:"total_students"`
	ActiveAssignments     int       `json:"active_assignments"`
	AverageCompletionRate float64   `json:"average_completion_rate"`
	AverageScore          float64   `json:"average_score"`
	StudentsNeedingHelp   int       `json:"students_needing_help"`
}

// TrendResponse lists snapshots oldest first.
type TrendResponse struct {
	Type   string               `json:"type"`
	Points []TrendPointResponse `json:"points"`
}

// NewTrendPoint converts a snapshot row.
func NewTrendPoint(snapshot models.SchoolStatsSnapshot) TrendPointResponse {
	return TrendPointResponse{
		CapturedAt:            snapshot.CapturedAt,
		SnapshotType:          snapshot.SnapshotType,
		TotalStudents:         snapshot.TotalStudents,
		ActiveAssignments:     snapshot.ActiveAssignments,
		AverageCompletionRate: snapshot.AverageCompletionRate,
		AverageScore:          snapshot.AverageScore,
		StudentsNeedingHelp:   snapshot.StudentsNeedingHelp,
	}
}

// StudentStatisticsResponse combines a student's aggregate with their at-risk state.
type StudentStatisticsResponse struct {
	Stats     models.StudentStats `json:"stats"`
	NeedsHelp *NeedsHelpResponse  `json:"needs_help,omitempty"`
}
