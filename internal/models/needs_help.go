package models

import (
	"time"

	"gorm.io/datatypes"
)

// StudentNeedsHelp is the at-risk record of one student. The row survives across
// classification passes so that NeedsHelpSince keeps the original onset.
type StudentNeedsHelp struct {
	ID                 uint                        `gorm:"primaryKey" json:"id"`
	StudentID          uint                        `gorm:"uniqueIndex;not null" json:"student_id"`
	Reasons            datatypes.JSONSlice[string] `gorm:"type:json" json:"reasons"`
	Severity           string                      `gorm:"size:16;index;not null" json:"severity"`
	NeedsHelpSince     time.Time                   `gorm:"not null" json:"needs_help_since"`
	CompletionRate     float64                     `gorm:"not null" json:"completion_rate"`
	AverageScore       float64                     `gorm:"not null" json:"average_score"`
	OverdueAssignments int                         `gorm:"not null" json:"overdue_assignments"`
	IsResolved         bool                        `gorm:"index;not null;default:false" json:"is_resolved"`
	ResolvedAt         *time.Time                  `json:"resolved_at"`
	DetectedAt         time.Time                   `gorm:"not null" json:"detected_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// StudentNeedsHelpClass links a flagged student to each of their classes.
type StudentNeedsHelpClass struct {
	StudentID uint `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	ClassID   uint `gorm:"primaryKey;autoIncrement:false;index" json:"class_id"`
}

// StudentNeedsHelpTeacher links a flagged student to each responsible teacher.
type StudentNeedsHelpTeacher struct {
	StudentID uint `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	TeacherID uint `gorm:"primaryKey;autoIncrement:false;index" json:"teacher_id"`
}
