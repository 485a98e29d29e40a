// Package analytics holds the pure reductions used by the statistics pipeline.
// Nothing in here touches the database; callers load facts and persist results.
package analytics

import (
	"math"
	"time"
)

// AssignmentFacts is the slice of an assignment the calculator needs.
type AssignmentFacts struct {
	ID            uint
	DueDate       time.Time
	QuestionCount int
}

// Answer is one progress row reduced to the fields that matter for aggregation.
type Answer struct {
	StudentID    uint
	AssignmentID uint
	QuestionID   uint
	Completed    bool
	Correct      bool
	SubmittedAt  time.Time
}

// Tally counts answered and correct questions.
type Tally struct {
	Total   int
	Correct int
}

// Add folds another tally into t.
func (t Tally) Add(other Tally) Tally {
	return Tally{Total: t.Total + other.Total, Correct: t.Correct + other.Correct}
}

// Score returns the correct percentage of the tally.
func (t Tally) Score() float64 {
	return Rate(t.Correct, t.Total)
}

// TallyAnswers counts completed answers; incomplete rows are not answers.
func TallyAnswers(answers []Answer) Tally {
	tally := Tally{}
	for _, answer := range answers {
		if !answer.Completed {
			continue
		}
		tally.Total++
		if answer.Correct {
			tally.Correct++
		}
	}
	return tally
}

// Rate returns part/total as a percentage rounded to two decimals, or 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	if part > total {
		part = total
	}
	return round2(float64(part) / float64(total) * 100)
}

// Mean averages the values, returning 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsComplete reports whether the distinct completed questions cover the assignment.
// An assignment without questions cannot be completed.
func IsComplete(questionCount, answeredDistinct int) bool {
	if questionCount <= 0 {
		return false
	}
	return answeredDistinct >= questionCount
}

// distinctCompleted counts distinct completed question ids per assignment.
func distinctCompleted(answers []Answer) map[uint]int {
	seen := make(map[uint]map[uint]struct{})
	for _, answer := range answers {
		if !answer.Completed {
			continue
		}
		questions, ok := seen[answer.AssignmentID]
		if !ok {
			questions = make(map[uint]struct{})
			seen[answer.AssignmentID] = questions
		}
		questions[answer.QuestionID] = struct{}{}
	}

	counts := make(map[uint]int, len(seen))
	for assignmentID, questions := range seen {
		counts[assignmentID] = len(questions)
	}
	return counts
}

// AssignmentAggregate summarises one assignment across the students in scope.
type AssignmentAggregate struct {
	TotalStudents     int
	CompletedStudents int
	CompletionRate    float64
	AverageScore      float64
	Answers           Tally
}

// SummarizeAssignment reduces the answers of one assignment. Only students in scope
// are counted, so CompletedStudents never exceeds TotalStudents.
func SummarizeAssignment(assignment AssignmentFacts, scope []uint, answers []Answer) AssignmentAggregate {
	inScope := make(map[uint]struct{}, len(scope))
	for _, id := range scope {
		inScope[id] = struct{}{}
	}

	byStudent := make(map[uint][]Answer)
	for _, answer := range answers {
		if answer.AssignmentID != assignment.ID {
			continue
		}
		if _, ok := inScope[answer.StudentID]; !ok {
			continue
		}
		byStudent[answer.StudentID] = append(byStudent[answer.StudentID], answer)
	}

	aggregate := AssignmentAggregate{TotalStudents: len(inScope)}
	for _, studentAnswers := range byStudent {
		aggregate.Answers = aggregate.Answers.Add(TallyAnswers(studentAnswers))
		if IsComplete(assignment.QuestionCount, distinctCompleted(studentAnswers)[assignment.ID]) {
			aggregate.CompletedStudents++
		}
	}

	aggregate.CompletionRate = Rate(aggregate.CompletedStudents, aggregate.TotalStudents)
	aggregate.AverageScore = aggregate.Answers.Score()
	return aggregate
}

// StudentAggregate summarises one student across all visible assignments.
type StudentAggregate struct {
	TotalAssignments      int
	CompletedAssignments  int
	OverdueAssignments    int
	CompletedOverdue      int
	Answers               Tally
	AverageScore          float64
	CompletionRate        float64
	OverdueCompletionRate float64
	EarliestOverdueDue    *time.Time
	EarliestIncorrectAt   *time.Time
	LastActivityAt        *time.Time
}

// SummarizeStudent reduces a student's answers against the assignments visible to them.
// Answers for assignments outside the visible set are ignored.
func SummarizeStudent(now time.Time, assignments []AssignmentFacts, answers []Answer) StudentAggregate {
	visible := make(map[uint]AssignmentFacts, len(assignments))
	for _, assignment := range assignments {
		visible[assignment.ID] = assignment
	}

	relevant := make([]Answer, 0, len(answers))
	for _, answer := range answers {
		if _, ok := visible[answer.AssignmentID]; ok {
			relevant = append(relevant, answer)
		}
	}

	completedQuestions := distinctCompleted(relevant)
	aggregate := StudentAggregate{TotalAssignments: len(visible)}

	for _, assignment := range visible {
		complete := IsComplete(assignment.QuestionCount, completedQuestions[assignment.ID])
		if complete {
			aggregate.CompletedAssignments++
		}
		if now.After(assignment.DueDate) {
			aggregate.OverdueAssignments++
			if complete {
				aggregate.CompletedOverdue++
			}
			due := assignment.DueDate
			if aggregate.EarliestOverdueDue == nil || due.Before(*aggregate.EarliestOverdueDue) {
				aggregate.EarliestOverdueDue = &due
			}
		}
	}

	for _, answer := range relevant {
		submitted := answer.SubmittedAt
		if aggregate.LastActivityAt == nil || submitted.After(*aggregate.LastActivityAt) {
			aggregate.LastActivityAt = &submitted
		}
		if answer.Completed && !answer.Correct {
			if aggregate.EarliestIncorrectAt == nil || submitted.Before(*aggregate.EarliestIncorrectAt) {
				aggregate.EarliestIncorrectAt = &submitted
			}
		}
	}

	aggregate.Answers = TallyAnswers(relevant)
	aggregate.AverageScore = aggregate.Answers.Score()
	aggregate.CompletionRate = Rate(aggregate.CompletedAssignments, aggregate.TotalAssignments)
	aggregate.OverdueCompletionRate = Rate(aggregate.CompletedOverdue, aggregate.OverdueAssignments)
	return aggregate
}
