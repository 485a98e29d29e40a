package models

import "time"

// Assignment represents a set of questions handed out to a class or to individual students.
type Assignment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Title              string     `gorm:"size:255;not null" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	TeacherID          uint       `gorm:"index;not null" json:"teacher_id"`
	ClassID            *uint      `gorm:"index" json:"class_id"`
	DueDate            time.Time  `gorm:"not null" json:"due_date"`
	ScheduledPublishAt *time.Time `gorm:"index" json:"scheduled_publish_at"`
	IsActive           bool       `gorm:"index;not null;default:false" json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Questions          []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// IsPublishable reports whether a scheduled assignment should be activated at the reference time.
func (a Assignment) IsPublishable(reference time.Time) bool {
	if a.IsActive || a.ScheduledPublishAt == nil {
		return false
	}
	return !a.ScheduledPublishAt.After(reference)
}

// AssignmentStudent links an assignment directly to a student outside of any class.
type AssignmentStudent struct {
	AssignmentID uint      `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	StudentID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"student_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Question is a single gradable item within an assignment.
type Question struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AssignmentID   uint      `gorm:"index;not null" json:"assignment_id"`
	Prompt         string    `gorm:"type:text;not null" json:"prompt"`
	ExpectedAnswer string    `gorm:"type:text" json:"-"`
	Position       int       `gorm:"not null;default:0" json:"position"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
