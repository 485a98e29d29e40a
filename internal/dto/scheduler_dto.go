package dto

import "time"

// TaskStatusResponse describes one scheduled task for the admin console.
type TaskStatusResponse struct {
	Name           string     `json:"name"`
	Spec           string     `json:"spec"`
	Running        bool       `json:"running"`
	LastRunAt      *time.Time `json:"last_run_at"`
	LastDurationMs int64      `json:"last_duration_ms"`
	LastError      string     `json:"last_error,omitempty"`
	LastTrigger    string     `json:"last_trigger,omitempty"`
	Runs           int64      `json:"runs"`
	Failures       int64      `json:"failures"`
	Skips          int64      `json:"skips"`
	NextRunAt      *time.Time `json:"next_run_at"`
}

// TaskTriggerResponse acknowledges a manual trigger.
type TaskTriggerResponse struct {
	Task        string    `json:"task"`
	Accepted    bool      `json:"accepted"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// SnapshotCaptureRequest selects the snapshot type for a manual capture.
type SnapshotCaptureRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=daily weekly monthly manual"`
}

// PublicationResponse summarises one run of the publication sweep.
type PublicationResponse struct {
	Published    []uint    `json:"published"`
	Count        int       `json:"count"`
	CheckedAt    time.Time `json:"checked_at"`
	AlreadyTaken int       `json:"already_taken"`
}
