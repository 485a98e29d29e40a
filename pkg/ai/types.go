package ai

import "context"

// AnswerInput carries what an evaluator needs to grade one free-text answer.
type AnswerInput struct {
	AssignmentTitle string
	Question        string
	ExpectedAnswer  string
	Answer          string
}

// EvaluationResult is the verdict returned by an evaluator.
type EvaluationResult struct {
	Correct  bool                   `json:"correct"`
	Score    float64                `json:"score"`
	Feedback string                 `json:"feedback"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Evaluator grades a student answer.
type Evaluator interface {
	Evaluate(ctx context.Context, input AnswerInput) (EvaluationResult, error)
}
