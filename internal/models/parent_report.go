package models

import "time"

// ParentReport is the weekly progress summary mailed to a student's parent.
type ParentReport struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	StudentID            uint       `gorm:"not null;uniqueIndex:idx_parent_report_week,priority:1" json:"student_id"`
	WeekStart            time.Time  `gorm:"not null;uniqueIndex:idx_parent_report_week,priority:2" json:"week_start"`
	ParentEmail          string     `gorm:"size:255;not null" json:"parent_email"`
	CompletedAssignments int        `gorm:"not null" json:"completed_assignments"`
	TotalAssignments     int        `gorm:"not null" json:"total_assignments"`
	CompletionRate       float64    `gorm:"not null" json:"completion_rate"`
	AverageScore         float64    `gorm:"not null" json:"average_score"`
	NeedsHelp            bool       `gorm:"not null" json:"needs_help"`
	Severity             string     `gorm:"size:16" json:"severity"`
	Summary              string     `gorm:"type:text" json:"summary"`
	ReportURL            string     `gorm:"size:512" json:"report_url"`
	DeliveredAt          *time.Time `json:"delivered_at"`
	CreatedAt            time.Time  `json:"created_at"`
}
