package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeverityForMapping(t *testing.T) {
	for days := 0; days <= 60; days++ {
		severity := SeverityFor(days)
		switch {
		case days <= 7:
			require.Equal(t, SeverityRecent, severity, "day %d", days)
		case days <= 14:
			require.Equal(t, SeverityWarning, severity, "day %d", days)
		default:
			require.Equal(t, SeverityCritical, severity, "day %d", days)
		}
	}
}

func TestSeverityIsMonotonic(t *testing.T) {
	rank := map[Severity]int{SeverityRecent: 0, SeverityWarning: 1, SeverityCritical: 2}
	previous := rank[SeverityFor(0)]
	for days := 1; days <= 60; days++ {
		current := rank[SeverityFor(days)]
		require.GreaterOrEqual(t, current, previous)
		previous = current
	}
}

func TestDaysBetween(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, 0, DaysBetween(now, now))
	require.Equal(t, 0, DaysBetween(now.Add(time.Hour), now))
	require.Equal(t, 0, DaysBetween(now.Add(-23*time.Hour), now))
	require.Equal(t, 8, DaysBetween(now.Add(-8*24*time.Hour-time.Minute), now))
}

// Four assignments: one overdue and untouched, three on time and complete at 40%, 60% and 80%.
func scenarioAggregate(now time.Time, overdueBy time.Duration) StudentAggregate {
	assignments := []AssignmentFacts{
		{ID: 1, DueDate: now.Add(-overdueBy), QuestionCount: 5},
		{ID: 2, DueDate: now.Add(72 * time.Hour), QuestionCount: 5},
		{ID: 3, DueDate: now.Add(72 * time.Hour), QuestionCount: 5},
		{ID: 4, DueDate: now.Add(72 * time.Hour), QuestionCount: 5},
	}
	answeredAt := now.Add(-2 * time.Hour)
	answers := answersFor(1, 2, 2, 5, answeredAt)
	answers = append(answers, answersFor(1, 3, 3, 5, answeredAt)...)
	answers = append(answers, answersFor(1, 4, 4, 5, answeredAt)...)
	return SummarizeStudent(now, assignments, answers)
}

func TestAssessEndToEndScenario(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		overdueBy time.Duration
		severity  Severity
		days      int
	}{
		{overdueBy: 3 * 24 * time.Hour, severity: SeverityRecent, days: 3},
		{overdueBy: 10 * 24 * time.Hour, severity: SeverityWarning, days: 10},
		{overdueBy: 20 * 24 * time.Hour, severity: SeverityCritical, days: 20},
	}

	for _, tc := range cases {
		aggregate := scenarioAggregate(now, tc.overdueBy)
		require.Equal(t, 75.0, aggregate.CompletionRate)
		require.Equal(t, 60.0, aggregate.AverageScore)
		require.Equal(t, 1, aggregate.OverdueAssignments)
		require.Equal(t, 0.0, aggregate.OverdueCompletionRate)

		assessment := Assess(now, aggregate, DefaultThresholds())
		require.True(t, assessment.NeedsHelp)
		require.Equal(t, []Reason{ReasonOverdueCompletion}, assessment.Reasons)
		require.Equal(t, now.Add(-tc.overdueBy), assessment.Since)
		require.Equal(t, tc.days, assessment.Days)
		require.Equal(t, tc.severity, assessment.Severity)
	}
}

func TestAssessHealthyStudent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assignments := []AssignmentFacts{{ID: 1, DueDate: now.Add(-time.Hour), QuestionCount: 2}}
	aggregate := SummarizeStudent(now, assignments, answersFor(1, 1, 2, 2, now.Add(-2*time.Hour)))

	assessment := Assess(now, aggregate, DefaultThresholds())
	require.False(t, assessment.NeedsHelp)
	require.Empty(t, assessment.Reasons)
}

func TestAssessScoreRuleUsesEarliestIncorrectAnswer(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	firstWrong := now.Add(-9 * 24 * time.Hour)
	assignments := []AssignmentFacts{{ID: 1, DueDate: now.Add(24 * time.Hour), QuestionCount: 4}}
	aggregate := SummarizeStudent(now, assignments, answersFor(1, 1, 1, 4, firstWrong.Add(-time.Minute)))

	assessment := Assess(now, aggregate, DefaultThresholds())
	require.True(t, assessment.NeedsHelp)
	require.Equal(t, []Reason{ReasonAverageScore}, assessment.Reasons)
	require.Equal(t, firstWrong, assessment.Since)
	require.Equal(t, SeverityWarning, assessment.Severity)
}

func TestAssessScoreRuleNeedsMinimumAnswers(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assignments := []AssignmentFacts{{ID: 1, DueDate: now.Add(24 * time.Hour), QuestionCount: 4}}
	aggregate := SummarizeStudent(now, assignments, answersFor(1, 1, 0, 2, now))

	assessment := Assess(now, aggregate, DefaultThresholds())
	require.False(t, assessment.NeedsHelp)
}

func TestAssessCompletionRuleKeepsDetectionTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assignments := []AssignmentFacts{
		{ID: 1, DueDate: now.Add(24 * time.Hour), QuestionCount: 1},
		{ID: 2, DueDate: now.Add(24 * time.Hour), QuestionCount: 1},
		{ID: 3, DueDate: now.Add(24 * time.Hour), QuestionCount: 1},
	}
	aggregate := SummarizeStudent(now, assignments, answersFor(1, 1, 1, 1, now))

	assessment := Assess(now, aggregate, DefaultThresholds())
	require.True(t, assessment.NeedsHelp)
	require.Equal(t, []Reason{ReasonCompletionRate}, assessment.Reasons)
	require.Equal(t, now, assessment.Since)
	require.Equal(t, SeverityRecent, assessment.Severity)
}

func TestAssessPicksEarliestOnsetAcrossRules(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-5 * 24 * time.Hour)
	wrongAt := now.Add(-16 * 24 * time.Hour)
	assignments := []AssignmentFacts{
		{ID: 1, DueDate: due, QuestionCount: 5},
		{ID: 2, DueDate: now.Add(24 * time.Hour), QuestionCount: 3},
	}
	aggregate := SummarizeStudent(now, assignments, answersFor(1, 2, 0, 3, wrongAt))

	assessment := Assess(now, aggregate, DefaultThresholds())
	require.ElementsMatch(t, []Reason{ReasonOverdueCompletion, ReasonAverageScore}, assessment.Reasons)
	require.Equal(t, wrongAt, assessment.Since)
	require.Equal(t, SeverityCritical, assessment.Severity)
}

func TestOnsetWindowAgreesWithSeverityFor(t *testing.T) {
	now := time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)
	offsets := []time.Duration{-time.Hour, 0, time.Second}
	for days := 0; days <= 30; days++ {
		for _, offset := range offsets {
			since := now.Add(-time.Duration(days)*24*time.Hour + offset)
			expected := SeverityFor(DaysBetween(since, now))

			for _, severity := range []Severity{SeverityCritical, SeverityWarning, SeverityRecent} {
				after, atOrBefore, ok := OnsetWindow(severity, now)
				require.True(t, ok)
				inside := (after == nil || since.After(*after)) && (atOrBefore == nil || !since.After(*atOrBefore))
				require.Equal(t, severity == expected, inside, "days=%d offset=%s severity=%s", days, offset, severity)
			}
		}
	}

	_, _, ok := OnsetWindow(Severity("UNKNOWN"), now)
	require.False(t, ok)
}
