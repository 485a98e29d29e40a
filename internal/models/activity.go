package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// ActivityActionAssignmentPublished is logged by the publication sweep.
	ActivityActionAssignmentPublished = "assignment_published"
	// ActivityActionNeedsHelpResolved is logged when a teacher closes an at-risk record.
	ActivityActionNeedsHelpResolved = "needs_help_resolved"
	// ActivityActionTaskTriggered is logged for manual scheduler triggers.
	ActivityActionTaskTriggered = "task_triggered"
	// ActivityActionTaskRestarted is logged when an administrator reschedules a task.
	ActivityActionTaskRestarted = "task_restarted"
)

// ActivityLog captures auditable events triggered by administrators, teachers and scheduled jobs.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
