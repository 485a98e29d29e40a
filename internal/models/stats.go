package models

import (
	"time"

	"gorm.io/datatypes"
)

// SchoolStatsID is the primary key of the single school-wide aggregate row.
const SchoolStatsID uint = 1

// AssignmentStats is the current aggregate for one assignment.
type AssignmentStats struct {
	AssignmentID      uint      `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	TotalStudents     int       `gorm:"not null" json:"total_students"`
	CompletedStudents int       `gorm:"not null" json:"completed_students"`
	CompletionRate    float64   `gorm:"not null" json:"completion_rate"`
	AverageScore      float64   `gorm:"not null" json:"average_score"`
	TotalAnswers      int       `gorm:"not null" json:"total_answers"`
	CorrectAnswers    int       `gorm:"not null" json:"correct_answers"`
	LastUpdated       time.Time `gorm:"not null" json:"last_updated"`
}

// StudentStats is the current aggregate for one student across all visible assignments.
type StudentStats struct {
	StudentID            uint       `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	TotalAssignments     int        `gorm:"not null" json:"total_assignments"`
	CompletedAssignments int        `gorm:"not null" json:"completed_assignments"`
	OverdueAssignments   int        `gorm:"not null" json:"overdue_assignments"`
	CompletedOverdue     int        `gorm:"not null" json:"completed_overdue"`
	TotalAnswers         int        `gorm:"not null" json:"total_answers"`
	CorrectAnswers       int        `gorm:"not null" json:"correct_answers"`
	AverageScore         float64    `gorm:"not null" json:"average_score"`
	CompletionRate       float64    `gorm:"not null" json:"completion_rate"`
	LastActivityAt       *time.Time `json:"last_activity_at"`
	LastUpdated          time.Time  `gorm:"not null" json:"last_updated"`
}

// ClassStats is the current aggregate for one class.
type ClassStats struct {
	ClassID               uint      `gorm:"primaryKey;autoIncrement:false" json:"class_id"`
	TotalStudents         int       `gorm:"not null" json:"total_students"`
	TotalAssignments      int       `gorm:"not null" json:"total_assignments"`
	AverageCompletionRate float64   `gorm:"not null" json:"average_completion_rate"`
	AverageScore          float64   `gorm:"not null" json:"average_score"`
	TotalAnswers          int       `gorm:"not null" json:"total_answers"`
	CorrectAnswers        int       `gorm:"not null" json:"correct_answers"`
	StudentsNeedingHelp   int       `gorm:"not null" json:"students_needing_help"`
	LastUpdated           time.Time `gorm:"not null" json:"last_updated"`
}

// TeacherStats is the current aggregate for one teacher's classes and assignments.
type TeacherStats struct {
	TeacherID             uint      `gorm:"primaryKey;autoIncrement:false" json:"teacher_id"`
	TotalClasses          int       `gorm:"not null" json:"total_classes"`
	TotalStudents         int       `gorm:"not null" json:"total_students"`
	TotalAssignments      int       `gorm:"not null" json:"total_assignments"`
	ActiveAssignments     int       `gorm:"not null" json:"active_assignments"`
	AverageCompletionRate float64   `gorm:"not null" json:"average_completion_rate"`
	AverageScore          float64   `gorm:"not null" json:"average_score"`
	LastUpdated           time.Time `gorm:"not null" json:"last_updated"`
}

// SchoolStats is the single school-wide aggregate row.
type SchoolStats struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TotalStudents         int       `gorm:"not null" json:"total_students"`
	TotalTeachers         int       `gorm:"not null" json:"total_teachers"`
	TotalClasses          int       `gorm:"not null" json:"total_classes"`
	TotalAssignments      int       `gorm:"not null" json:"total_assignments"`
	ActiveAssignments     int       `gorm:"not null" json:"active_assignments"`
	AverageCompletionRate float64   `gorm:"not null" json:"average_completion_rate"`
	AverageScore          float64   `gorm:"not null" json:"average_score"`
	StudentsNeedingHelp   int       `gorm:"not null" json:"students_needing_help"`
	LastUpdated           time.Time `gorm:"not null" json:"last_updated"`
}

const (
	// SnapshotDaily is captured by the daily archiver run.
	SnapshotDaily = "daily"
	// SnapshotWeekly is captured by the weekly archiver run.
	SnapshotWeekly = "weekly"
	// SnapshotMonthly is captured by the monthly archiver run.
	SnapshotMonthly = "monthly"
	// SnapshotManual is captured on demand by an administrator.
	SnapshotManual = "manual"
)

// SchoolStatsSnapshot is an immutable copy of SchoolStats used for trend charts.
type SchoolStatsSnapshot struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	SnapshotType          string    `gorm:"size:16;index;not null" json:"snapshot_type"`
	TotalStudents         int       `gorm:"not null" json:"total_students"`
	TotalTeachers         int       `gorm:"not null" json:"total_teachers"`
	TotalClasses          int       `gorm:"not null" json:"total_classes"`
	TotalAssignments      int       `gorm:"not null" json:"total_assignments"`
	ActiveAssignments     int       `gorm:"not null" json:"active_assignments"`
	AverageCompletionRate float64   `gorm:"not null" json:"average_completion_rate"`
	AverageScore          float64   `gorm:"not null" json:"average_score"`
	StudentsNeedingHelp   int       `gorm:"not null" json:"students_needing_help"`
	CapturedAt            time.Time `gorm:"index;not null" json:"captured_at"`
}

// NewSchoolStatsSnapshot copies the current school aggregate into a snapshot row.
func NewSchoolStatsSnapshot(stats SchoolStats, snapshotType string, capturedAt time.Time) SchoolStatsSnapshot {
	return SchoolStatsSnapshot{
		SnapshotType:          snapshotType,
		TotalStudents:         stats.TotalStudents,
		TotalTeachers:         stats.TotalTeachers,
		TotalClasses:          stats.TotalClasses,
		TotalAssignments:      stats.TotalAssignments,
		ActiveAssignments:     stats.ActiveAssignments,
		AverageCompletionRate: stats.AverageCompletionRate,
		AverageScore:          stats.AverageScore,
		StudentsNeedingHelp:   stats.StudentsNeedingHelp,
		CapturedAt:            capturedAt,
	}
}

// PerformanceMetric stores one observation emitted by a scheduled run.
type PerformanceMetric struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Name       string            `gorm:"size:128;index;not null" json:"name"`
	Value      float64           `gorm:"not null" json:"value"`
	Labels     datatypes.JSONMap `gorm:"type:json" json:"labels"`
	RecordedAt time.Time         `gorm:"index;not null" json:"recorded_at"`
}
