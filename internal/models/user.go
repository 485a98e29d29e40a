package models

import "time"

const (
	// RoleAdmin grants access to the scheduler control surface.
	RoleAdmin = "admin"
	// RoleTeacher owns classes and assignments.
	RoleTeacher = "teacher"
	// RoleStudent submits answers.
	RoleStudent = "student"
)

// User represents any authenticated member of the school.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role        string    `gorm:"size:16;index;not null" json:"role"`
	ParentEmail string    `gorm:"size:255" json:"parent_email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsStudent reports whether the user learns rather than teaches.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
