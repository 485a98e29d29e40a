package models

import "time"

// Class groups students under a single teacher.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TeacherID uint      `gorm:"index;not null" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassStudent is the enrolment link between a class and a student.
type ClassStudent struct {
	ClassID   uint      `gorm:"primaryKey;autoIncrement:false" json:"class_id"`
	StudentID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
