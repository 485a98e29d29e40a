package models

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Class{},
		&ClassStudent{},
		&Assignment{},
		&AssignmentStudent{},
		&Question{},
		&Progress{},
		&ActivityLog{},
		&AssignmentStats{},
		&StudentStats{},
		&ClassStats{},
		&TeacherStats{},
		&SchoolStats{},
		&SchoolStatsSnapshot{},
		&PerformanceMetric{},
		&StudentNeedsHelp{},
		&StudentNeedsHelpClass{},
		&StudentNeedsHelpTeacher{},
		&ParentReport{},
	}
}
