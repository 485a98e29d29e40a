package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

type stubAnswerService struct {
	validator *validator.Validate
	submitted []uint
}

func (s *stubAnswerService) Submit(_ context.Context, studentID uint, req dto.AnswerSubmitRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AnswerResponse{}, err
	}
	switch {
	case req.AssignmentID == 404:
		return dto.AnswerResponse{}, service.ErrAssignmentNotVisible
	case req.QuestionID == 404:
		return dto.AnswerResponse{}, service.ErrQuestionNotFound
	case req.Answer == "<b></b>":
		return dto.AnswerResponse{}, service.ErrEmptyAnswer
	}
	s.submitted = append(s.submitted, studentID)
	return dto.AnswerResponse{
		AssignmentID:     req.AssignmentID,
		QuestionID:       req.QuestionID,
		IsCorrect:        true,
		EvaluationSource: models.EvaluationSourceHeuristic,
		SubmittedAt:      time.Now().UTC(),
	}, nil
}

func newStudentApp(answers *stubAnswerService, stats *stubStatisticsService, studentID uint) *fiber.App {
	h := handler.NewStudentHandler(answers, stats, zerolog.Nop())
	app := fiber.New()
	app.Use(withUser(studentID, "student"))
	h.Register(app.Group("/api/student"), nil)
	return app
}

func TestStudentHandler_SubmitAnswer(t *testing.T) {
	answers := &stubAnswerService{validator: validator.New()}
	app := newStudentApp(answers, &stubStatisticsService{}, 21)

	resp := doRequest(t, app, http.MethodPost, "/api/student/answers", map[string]interface{}{
		"assignment_id": 3,
		"question_id":   9,
		"answer":        "photosynthesis",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := decodeBody[dto.AnswerResponse](t, resp)
	require.True(t, payload.Data.IsCorrect)
	require.Equal(t, uint(9), payload.Data.QuestionID)
	require.Equal(t, []uint{21}, answers.submitted)

	cases := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{name: "missing question", body: map[string]interface{}{"assignment_id": 3, "answer": "x"}, status: http.StatusBadRequest},
		{name: "empty after sanitising", body: map[string]interface{}{"assignment_id": 3, "question_id": 9, "answer": "<b></b>"}, status: http.StatusBadRequest},
		{name: "hidden assignment", body: map[string]interface{}{"assignment_id": 404, "question_id": 9, "answer": "x"}, status: http.StatusForbidden},
		{name: "foreign question", body: map[string]interface{}{"assignment_id": 3, "question_id": 404, "answer": "x"}, status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, app, http.MethodPost, "/api/student/answers", tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestStudentHandler_RateLimitsAnswers(t *testing.T) {
	answers := &stubAnswerService{validator: validator.New()}
	h := handler.NewStudentHandler(answers, &stubStatisticsService{}, zerolog.Nop())
	app := fiber.New()
	app.Use(withUser(21, "student"))

	limited := false
	limiter := func(c *fiber.Ctx) error {
		if limited {
			return c.SendStatus(fiber.StatusTooManyRequests)
		}
		limited = true
		return c.Next()
	}
	h.Register(app.Group("/api/student"), limiter)

	body := map[string]interface{}{"assignment_id": 3, "question_id": 9, "answer": "x"}
	resp := doRequest(t, app, http.MethodPost, "/api/student/answers", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doRequest(t, app, http.MethodPost, "/api/student/answers", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/student/statistics", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStudentHandler_OwnStatistics(t *testing.T) {
	stats := &stubStatisticsService{students: map[uint]dto.StudentStatisticsResponse{
		21: {Stats: models.StudentStats{StudentID: 21, CompletionRate: 75, AverageScore: 60}},
	}}
	app := newStudentApp(&stubAnswerService{validator: validator.New()}, stats, 21)

	resp := doRequest(t, app, http.MethodGet, "/api/student/statistics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody[dto.StudentStatisticsResponse](t, resp)
	require.Equal(t, uint(21), payload.Data.Stats.StudentID)
	require.InDelta(t, 75, payload.Data.Stats.CompletionRate, 0.001)
	require.Nil(t, payload.Data.NeedsHelp)
}
