package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func answersFor(studentID, assignmentID uint, correct, total int, at time.Time) []Answer {
	answers := make([]Answer, 0, total)
	for i := 0; i < total; i++ {
		answers = append(answers, Answer{
			StudentID:    studentID,
			AssignmentID: assignmentID,
			QuestionID:   assignmentID*100 + uint(i),
			Completed:    true,
			Correct:      i < correct,
			SubmittedAt:  at.Add(time.Duration(i) * time.Minute),
		})
	}
	return answers
}

func TestRateGuardsZeroDenominator(t *testing.T) {
	require.Equal(t, 0.0, Rate(0, 0))
	require.Equal(t, 0.0, Rate(3, 0))
	require.Equal(t, 75.0, Rate(3, 4))
	require.Equal(t, 33.33, Rate(1, 3))
	require.Equal(t, 100.0, Rate(5, 4), "part is clamped to total")
}

func TestIsCompleteRequiresEveryQuestion(t *testing.T) {
	require.False(t, IsComplete(0, 0))
	require.False(t, IsComplete(3, 2))
	require.True(t, IsComplete(3, 3))
}

func TestSummarizeStudentCountsDistinctQuestions(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	assignment := AssignmentFacts{ID: 1, DueDate: now.Add(24 * time.Hour), QuestionCount: 2}

	answers := []Answer{
		{StudentID: 7, AssignmentID: 1, QuestionID: 10, Completed: true, Correct: true, SubmittedAt: now},
		{StudentID: 7, AssignmentID: 1, QuestionID: 10, Completed: true, Correct: false, SubmittedAt: now},
	}

	aggregate := SummarizeStudent(now, []AssignmentFacts{assignment}, answers)
	require.Equal(t, 0, aggregate.CompletedAssignments, "repeated answers to one question do not complete the assignment")

	answers = append(answers, Answer{StudentID: 7, AssignmentID: 1, QuestionID: 11, Completed: true, Correct: true, SubmittedAt: now})
	aggregate = SummarizeStudent(now, []AssignmentFacts{assignment}, answers)
	require.Equal(t, 1, aggregate.CompletedAssignments)
	require.Equal(t, 100.0, aggregate.CompletionRate)
}

func TestSummarizeStudentIgnoresInvisibleAssignments(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	visible := []AssignmentFacts{{ID: 1, DueDate: now.Add(time.Hour), QuestionCount: 1}}
	answers := append(answersFor(3, 1, 1, 1, now), answersFor(3, 99, 0, 4, now)...)

	aggregate := SummarizeStudent(now, visible, answers)
	require.Equal(t, 1, aggregate.TotalAssignments)
	require.Equal(t, 1, aggregate.Answers.Total)
	require.Equal(t, 100.0, aggregate.AverageScore)
	require.Nil(t, aggregate.EarliestIncorrectAt)
}

func TestSummarizeStudentInvariants(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	assignments := []AssignmentFacts{
		{ID: 1, DueDate: now.Add(-48 * time.Hour), QuestionCount: 3},
		{ID: 2, DueDate: now.Add(48 * time.Hour), QuestionCount: 2},
		{ID: 3, DueDate: now.Add(-time.Hour), QuestionCount: 0},
	}

	cases := [][]Answer{
		nil,
		answersFor(1, 1, 3, 3, now),
		append(answersFor(1, 1, 0, 3, now), answersFor(1, 2, 2, 2, now)...),
		append(answersFor(1, 2, 1, 2, now), answersFor(1, 3, 1, 1, now)...),
	}

	for _, answers := range cases {
		aggregate := SummarizeStudent(now, assignments, answers)
		require.LessOrEqual(t, aggregate.CompletedAssignments, aggregate.TotalAssignments)
		require.LessOrEqual(t, aggregate.CompletedOverdue, aggregate.OverdueAssignments)
		require.LessOrEqual(t, aggregate.Answers.Correct, aggregate.Answers.Total)
	}
}

func TestSummarizeAssignmentOnlyCountsScope(t *testing.T) {
	now := time.Now().UTC()
	assignment := AssignmentFacts{ID: 5, DueDate: now, QuestionCount: 2}

	answers := append(answersFor(1, 5, 2, 2, now), answersFor(2, 5, 1, 2, now)...)
	answers = append(answers, answersFor(3, 5, 2, 2, now)...)

	aggregate := SummarizeAssignment(assignment, []uint{1, 2}, answers)
	require.Equal(t, 2, aggregate.TotalStudents)
	require.Equal(t, 2, aggregate.CompletedStudents)
	require.LessOrEqual(t, aggregate.CompletedStudents, aggregate.TotalStudents)
	require.Equal(t, 100.0, aggregate.CompletionRate)
	require.Equal(t, Tally{Total: 4, Correct: 3}, aggregate.Answers)
	require.Equal(t, 75.0, aggregate.AverageScore)
}

func TestSummarizeAssignmentEmptyScope(t *testing.T) {
	aggregate := SummarizeAssignment(AssignmentFacts{ID: 1, QuestionCount: 1}, nil, answersFor(1, 1, 1, 1, time.Now()))
	require.Equal(t, 0, aggregate.TotalStudents)
	require.Equal(t, 0, aggregate.CompletedStudents)
	require.Equal(t, 0.0, aggregate.CompletionRate)
}

func TestRollups(t *testing.T) {
	students := []StudentSummary{
		{CompletionRate: 50, Answers: Tally{Total: 4, Correct: 2}},
		{CompletionRate: 100, Answers: Tally{Total: 6, Correct: 6}},
	}

	class := SummarizeClass(students, 3, Tally{Total: 10, Correct: 8}, 1)
	require.Equal(t, 2, class.TotalStudents)
	require.Equal(t, 75.0, class.AverageCompletionRate)
	require.Equal(t, 80.0, class.AverageScore)

	school := SummarizeSchool(SchoolCounts{Students: 2, Teachers: 1}, students)
	require.Equal(t, 75.0, school.AverageCompletionRate)
	require.Equal(t, 80.0, school.AverageScore)
	require.Equal(t, 2, school.Students)

	teacher := SummarizeTeacher(1, 2, []AssignmentSummary{
		{Active: true, CompletionRate: 40, Answers: Tally{Total: 5, Correct: 1}},
		{Active: false, CompletionRate: 0},
		{Active: true, CompletionRate: 60, Answers: Tally{Total: 5, Correct: 4}},
	})
	require.Equal(t, 3, teacher.TotalAssignments)
	require.Equal(t, 2, teacher.ActiveAssignments)
	require.Equal(t, 50.0, teacher.AverageCompletionRate)
	require.Equal(t, 50.0, teacher.AverageScore)
}
