package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// StudentHandler serves answer submission and the student's own statistics.
type StudentHandler struct {
	answers    service.AnswerService
	statistics service.StatisticsService
	logger     zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(answers service.AnswerService, statistics service.StatisticsService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		answers:    answers,
		statistics: statistics,
		logger:     logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes. The limiter guards answer submission only.
func (h *StudentHandler) Register(router fiber.Router, answerLimiter fiber.Handler) {
	if answerLimiter != nil {
		router.Post("/answers", answerLimiter, h.submitAnswer)
	} else {
		router.Post("/answers", h.submitAnswer)
	}
	router.Get("/statistics", h.statisticsForSelf)
}

func (h *StudentHandler) submitAnswer(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req dto.AnswerSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	response, err := h.answers.Submit(c.Context(), studentID, req)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrEmptyAnswer):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAssignmentNotVisible):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrQuestionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("student_id", studentID).Msg("failed to submit answer")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit answer")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer submitted", response)
}

func (h *StudentHandler) statisticsForSelf(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	stats, err := h.statistics.GetStudentStatistics(c.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("student_id", studentID).Msg("failed to load student statistics")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load student statistics")
	}
	return utils.SendSuccess(c, "student statistics", stats)
}
