package analytics

import "time"

// Severity tiers an at-risk record by how long the student has needed help.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityRecent   Severity = "RECENT"
)

const (
	warningAfterDays  = 7
	criticalAfterDays = 14
)

// Reason names the rule that flagged a student.
type Reason string

const (
	ReasonOverdueCompletion Reason = "overdue_completion_below_threshold"
	ReasonAverageScore      Reason = "average_score_below_threshold"
	ReasonCompletionRate    Reason = "completion_rate_below_threshold"
)

// Thresholds configures the at-risk rules.
type Thresholds struct {
	// MinRate is the percentage below which a rate counts as failing.
	MinRate float64
	// MinAnswers is the number of answers required before the score rule applies.
	MinAnswers int
	// MinAssignments is the number of assignments required before the completion rule applies.
	MinAssignments int
}

// DefaultThresholds returns the school's standard at-risk thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinRate: 50, MinAnswers: 3, MinAssignments: 3}
}

func (t Thresholds) normalized() Thresholds {
	defaults := DefaultThresholds()
	if t.MinRate <= 0 {
		t.MinRate = defaults.MinRate
	}
	if t.MinAnswers <= 0 {
		t.MinAnswers = defaults.MinAnswers
	}
	if t.MinAssignments <= 0 {
		t.MinAssignments = defaults.MinAssignments
	}
	return t
}

// Assessment is the classifier verdict for one student.
type Assessment struct {
	NeedsHelp bool
	Reasons   []Reason
	Since     time.Time
	Days      int
	Severity  Severity
}

// DaysBetween returns the number of whole days elapsed from since to now, never negative.
func DaysBetween(since, now time.Time) int {
	if !now.After(since) {
		return 0
	}
	return int(now.Sub(since) / (24 * time.Hour))
}

// SeverityFor maps elapsed days to a severity tier.
func SeverityFor(days int) Severity {
	switch {
	case days > criticalAfterDays:
		return SeverityCritical
	case days > warningAfterDays:
		return SeverityWarning
	default:
		return SeverityRecent
	}
}

// OnsetWindow returns the onset bounds whose records have the given severity at
// now: after < since <= atOrBefore. A nil bound is open. ok is false for unknown
// severities.
func OnsetWindow(severity Severity, now time.Time) (after, atOrBefore *time.Time, ok bool) {
	day := 24 * time.Hour
	criticalEdge := now.Add(-time.Duration(criticalAfterDays+1) * day)
	warningEdge := now.Add(-time.Duration(warningAfterDays+1) * day)

	switch severity {
	case SeverityCritical:
		return nil, &criticalEdge, true
	case SeverityWarning:
		return &criticalEdge, &warningEdge, true
	case SeverityRecent:
		return &warningEdge, nil, true
	default:
		return nil, nil, false
	}
}

// Assess evaluates the at-risk rules for one student aggregate. Any rule flags the
// student; the onset is pulled back to the earliest qualifying event.
func Assess(now time.Time, aggregate StudentAggregate, thresholds Thresholds) Assessment {
	th := thresholds.normalized()
	since := now
	reasons := make([]Reason, 0, 3)

	if aggregate.OverdueAssignments > 0 && aggregate.OverdueCompletionRate < th.MinRate {
		reasons = append(reasons, ReasonOverdueCompletion)
		if aggregate.EarliestOverdueDue != nil && aggregate.EarliestOverdueDue.Before(since) {
			since = *aggregate.EarliestOverdueDue
		}
	}

	if aggregate.Answers.Total >= th.MinAnswers && aggregate.AverageScore < th.MinRate {
		reasons = append(reasons, ReasonAverageScore)
		if aggregate.EarliestIncorrectAt != nil && aggregate.EarliestIncorrectAt.Before(since) {
			since = *aggregate.EarliestIncorrectAt
		}
	}

	if aggregate.TotalAssignments >= th.MinAssignments && aggregate.CompletionRate < th.MinRate {
		reasons = append(reasons, ReasonCompletionRate)
	}

	if len(reasons) == 0 {
		return Assessment{}
	}

	return Onset(now, since, reasons)
}

// Onset builds a flagged assessment whose severity follows the elapsed days since the onset.
func Onset(now, since time.Time, reasons []Reason) Assessment {
	days := DaysBetween(since, now)
	return Assessment{
		NeedsHelp: true,
		Reasons:   reasons,
		Since:     since,
		Days:      days,
		Severity:  SeverityFor(days),
	}
}

// ReasonStrings converts reasons for persistence.
func ReasonStrings(reasons []Reason) []string {
	out := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		out = append(out, string(reason))
	}
	return out
}
