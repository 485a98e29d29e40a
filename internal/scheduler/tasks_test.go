package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

func TestRegisterDefaults(t *testing.T) {
	s := New(zerolog.Nop())
	var captured []string
	calls := map[string]int{}
	count := func(name string) func(context.Context) error {
		return func(context.Context) error {
			calls[name]++
			return nil
		}
	}

	specs := map[string]string{
		TaskAssignmentPublication: "@every 1m",
		TaskStatistics:            "@hourly",
		TaskNeedsHelp:             "@hourly",
		TaskSnapshotDaily:         "5 0 * * *",
		TaskSnapshotWeekly:        "10 0 * * 1",
		TaskSnapshotMonthly:       "15 0 1 * *",
	}
	require.NoError(t, RegisterDefaults(s, specs, Runners{
		PublishAssignments: count(TaskAssignmentPublication),
		RefreshStatistics:  count(TaskStatistics),
		ClassifyStudents:   count(TaskNeedsHelp),
		CaptureSnapshot: func(_ context.Context, snapshotType string) error {
			captured = append(captured, snapshotType)
			return nil
		},
		SendParentReports: count(TaskParentReports),
	}))

	status := s.Status()
	require.Len(t, status, 6, "parent reports has no spec")

	require.NoError(t, s.RunNow(context.Background(), TaskSnapshotWeekly))
	require.NoError(t, s.RunNow(context.Background(), TaskSnapshotMonthly))
	require.Equal(t, []string{models.SnapshotWeekly, models.SnapshotMonthly}, captured)

	require.NoError(t, s.RunNow(context.Background(), TaskStatistics))
	require.Equal(t, 1, calls[TaskStatistics])

	require.ErrorIs(t, s.RunNow(context.Background(), TaskParentReports), ErrTaskNotFound)
}

func TestRegisterDefaultsRejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop())
	err := RegisterDefaults(s, map[string]string{TaskStatistics: "every hour"}, Runners{
		RefreshStatistics: func(context.Context) error { return nil },
	})
	require.Error(t, err)
}
