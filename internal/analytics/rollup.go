package analytics

// StudentSummary is the part of a stored student aggregate used by higher-level rollups.
type StudentSummary struct {
	CompletionRate float64
	Answers        Tally
}

// AssignmentSummary is the part of a stored assignment aggregate used by higher-level rollups.
type AssignmentSummary struct {
	Active         bool
	CompletionRate float64
	Answers        Tally
}

// ClassAggregate summarises a class from its students' aggregates and a direct answer tally.
type ClassAggregate struct {
	TotalStudents         int
	TotalAssignments      int
	AverageCompletionRate float64
	AverageScore          float64
	Answers               Tally
	StudentsNeedingHelp   int
}

// SummarizeClass combines student aggregates with the class-level answer tally taken from progress.
func SummarizeClass(students []StudentSummary, assignmentCount int, answers Tally, needingHelp int) ClassAggregate {
	rates := make([]float64, 0, len(students))
	for _, student := range students {
		rates = append(rates, student.CompletionRate)
	}

	return ClassAggregate{
		TotalStudents:         len(students),
		TotalAssignments:      assignmentCount,
		AverageCompletionRate: Mean(rates),
		AverageScore:          answers.Score(),
		Answers:               answers,
		StudentsNeedingHelp:   needingHelp,
	}
}

// TeacherAggregate summarises the classes and assignments owned by one teacher.
type TeacherAggregate struct {
	TotalClasses          int
	TotalStudents         int
	TotalAssignments      int
	ActiveAssignments     int
	AverageCompletionRate float64
	AverageScore          float64
}

// SummarizeTeacher rolls assignment aggregates up to the teacher.
func SummarizeTeacher(classCount, studentCount int, assignments []AssignmentSummary) TeacherAggregate {
	aggregate := TeacherAggregate{
		TotalClasses:     classCount,
		TotalStudents:    studentCount,
		TotalAssignments: len(assignments),
	}

	rates := make([]float64, 0, len(assignments))
	answers := Tally{}
	for _, assignment := range assignments {
		if assignment.Active {
			aggregate.ActiveAssignments++
			rates = append(rates, assignment.CompletionRate)
		}
		answers = answers.Add(assignment.Answers)
	}

	aggregate.AverageCompletionRate = Mean(rates)
	aggregate.AverageScore = answers.Score()
	return aggregate
}

// SchoolCounts are the plain entity counts of the school.
type SchoolCounts struct {
	Students          int
	Teachers          int
	Classes           int
	Assignments       int
	ActiveAssignments int
	NeedingHelp       int
}

// SchoolAggregate summarises the whole school.
type SchoolAggregate struct {
	SchoolCounts
	AverageCompletionRate float64
	AverageScore          float64
}

// SummarizeSchool rolls student aggregates up to the school.
func SummarizeSchool(counts SchoolCounts, students []StudentSummary) SchoolAggregate {
	rates := make([]float64, 0, len(students))
	answers := Tally{}
	for _, student := range students {
		rates = append(rates, student.CompletionRate)
		answers = answers.Add(student.Answers)
	}

	return SchoolAggregate{
		SchoolCounts:          counts,
		AverageCompletionRate: Mean(rates),
		AverageScore:          answers.Score(),
	}
}
