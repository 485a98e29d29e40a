package scheduler

import (
	"context"
	"fmt"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// Names of the pipeline tasks.
const (
	TaskAssignmentPublication = "assignment-publication"
	TaskStatistics            = "statistics"
	TaskNeedsHelp             = "needs-help"
	TaskSnapshotDaily         = "snapshot-daily"
	TaskSnapshotWeekly        = "snapshot-weekly"
	TaskSnapshotMonthly       = "snapshot-monthly"
	TaskParentReports         = "parent-reports"
)

// Runners are the pipeline entry points invoked by the default tasks.
type Runners struct {
	PublishAssignments func(ctx context.Context) error
	RefreshStatistics  func(ctx context.Context) error
	ClassifyStudents   func(ctx context.Context) error
	CaptureSnapshot    func(ctx context.Context, snapshotType string) error
	SendParentReports  func(ctx context.Context) error
}

// RegisterDefaults registers every pipeline task using the given cron specs.
// A task whose runner is nil or whose spec is empty is left out.
func RegisterDefaults(s *Scheduler, specs map[string]string, runners Runners) error {
	snapshot := func(snapshotType string) func(context.Context) error {
		if runners.CaptureSnapshot == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return runners.CaptureSnapshot(ctx, snapshotType)
		}
	}

	tasks := []Task{
		{Name: TaskAssignmentPublication, Run: runners.PublishAssignments},
		{Name: TaskStatistics, Run: runners.RefreshStatistics},
		{Name: TaskNeedsHelp, Run: runners.ClassifyStudents},
		{Name: TaskSnapshotDaily, Run: snapshot(models.SnapshotDaily)},
		{Name: TaskSnapshotWeekly, Run: snapshot(models.SnapshotWeekly)},
		{Name: TaskSnapshotMonthly, Run: snapshot(models.SnapshotMonthly)},
		{Name: TaskParentReports, Run: runners.SendParentReports},
	}

	for _, task := range tasks {
		task.Spec = specs[task.Name]
		if task.Run == nil || task.Spec == "" {
			s.logger.Warn().Str("task", task.Name).Msg("task not registered")
			continue
		}
		if err := s.Register(task); err != nil {
			return fmt.Errorf("register %s: %w", task.Name, err)
		}
	}
	return nil
}
