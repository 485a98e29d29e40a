package ai

import (
	"context"
	"strings"
	"unicode"
)

// HeuristicEvaluator grades by normalized substring match against the expected answer.
type HeuristicEvaluator struct{}

// Evaluate never fails.
func (HeuristicEvaluator) Evaluate(_ context.Context, input AnswerInput) (EvaluationResult, error) {
	expected := normalizeAnswer(input.ExpectedAnswer)
	answer := normalizeAnswer(input.Answer)

	correct := expected != "" && answer != "" &&
		(strings.Contains(answer, expected) || (strings.Contains(expected, answer) && len(answer)*2 >= len(expected)))

	result := EvaluationResult{Correct: correct, Feedback: "Answer does not match the expected solution."}
	if correct {
		result.Score = 1
		result.Feedback = "Answer matches the expected solution."
	}
	return result, nil
}

func normalizeAnswer(value string) string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
