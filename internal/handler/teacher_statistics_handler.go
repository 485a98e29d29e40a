package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// TeacherStatisticsHandler gives teachers read access to aggregates and the at-risk list.
type TeacherStatisticsHandler struct {
	statistics service.StatisticsService
	needsHelp  service.NeedsHelpService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewTeacherStatisticsHandler constructs the handler.
func NewTeacherStatisticsHandler(statistics service.StatisticsService, needsHelp service.NeedsHelpService, validate *validator.Validate, logger zerolog.Logger) *TeacherStatisticsHandler {
	return &TeacherStatisticsHandler{
		statistics: statistics,
		needsHelp:  needsHelp,
		validator:  validate,
		logger:     logger.With().Str("component", "teacher_statistics_handler").Logger(),
	}
}

// Register wires teacher routes.
func (h *TeacherStatisticsHandler) Register(router fiber.Router) {
	router.Get("/classes/:id/statistics", h.classStatistics)
	router.Get("/assignments/:id/statistics", h.assignmentStatistics)
	router.Get("/students/needs-help", h.listNeedsHelp)
	router.Get("/students/:id/statistics", h.studentStatistics)
	router.Post("/students/:id/needs-help/resolve", h.resolveNeedsHelp)
}

func (h *TeacherStatisticsHandler) classStatistics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}

	stats, err := h.statistics.GetClassStatistics(c.Context(), id)
	if err != nil {
		return h.statisticsError(c, err, "failed to load class statistics")
	}
	return utils.SendSuccess(c, "class statistics", stats)
}

func (h *TeacherStatisticsHandler) assignmentStatistics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	stats, err := h.statistics.GetAssignmentStatistics(c.Context(), id)
	if err != nil {
		return h.statisticsError(c, err, "failed to load assignment statistics")
	}
	return utils.SendSuccess(c, "assignment statistics", stats)
}

func (h *TeacherStatisticsHandler) studentStatistics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	stats, err := h.statistics.GetStudentStatistics(c.Context(), id)
	if err != nil {
		return h.statisticsError(c, err, "failed to load student statistics")
	}
	return utils.SendSuccess(c, "student statistics", stats)
}

func (h *TeacherStatisticsHandler) listNeedsHelp(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.NeedsHelpListRequest{
		Severity: strings.ToUpper(strings.TrimSpace(c.Query("severity"))),
		Page:     page,
		PageSize: pageSize,
	}

	if raw := strings.TrimSpace(c.Query("include_resolved")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "include_resolved must be a boolean")
		}
		req.IncludeResolved = include
	}

	classID, err := parseQueryInt(c, "class_id")
	if err != nil || classID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}
	if classID > 0 {
		id := uint(classID)
		req.ClassID = &id
	}

	// Teachers only see students linked to them; administrators see everyone.
	if !isAdmin(c) {
		teacherID := userIDFromContext(c)
		req.TeacherID = &teacherID
	}

	response, err := h.needsHelp.List(c.Context(), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students needing help")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students needing help")
	}

	return utils.OK(c, response.Items, "students needing help", response.Pagination)
}

func (h *TeacherStatisticsHandler) resolveNeedsHelp(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var req dto.ResolveNeedsHelpRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.needsHelp.Resolve(c.Context(), studentID, activityActorFromContext(c), req)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNeedsHelpNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "no needs-help record for this student")
		case errors.Is(err, service.ErrNeedsHelpResolved):
			return utils.SendError(c, fiber.StatusConflict, "needs-help record already resolved")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("student_id", studentID).Msg("failed to resolve needs-help record")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve needs-help record")
		}
	}

	return utils.SendSuccess(c, "needs-help record resolved", response)
}

func (h *TeacherStatisticsHandler) statisticsError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrClassNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "class not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
