package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// AdminStatisticsHandler serves the school-wide dashboard and the manual sweep.
type AdminStatisticsHandler struct {
	statistics service.StatisticsService
	snapshots  service.SnapshotService
	logger     zerolog.Logger
}

// NewAdminStatisticsHandler constructs the handler.
func NewAdminStatisticsHandler(statistics service.StatisticsService, snapshots service.SnapshotService, logger zerolog.Logger) *AdminStatisticsHandler {
	return &AdminStatisticsHandler{
		statistics: statistics,
		snapshots:  snapshots,
		logger:     logger.With().Str("component", "admin_statistics_handler").Logger(),
	}
}

// Register wires statistics routes.
func (h *AdminStatisticsHandler) Register(router fiber.Router) {
	router.Post("/refresh", h.refresh)
	router.Get("/school", h.school)
	router.Get("/trend", h.trend)
}

func (h *AdminStatisticsHandler) refresh(c *fiber.Ctx) error {
	report, err := h.statistics.RunSweep(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("statistics sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to refresh statistics")
	}
	return utils.SendSuccess(c, "statistics refreshed", report)
}

func (h *AdminStatisticsHandler) school(c *fiber.Ctx) error {
	overview, err := h.statistics.GetSchoolOverview(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load school overview")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load school statistics")
	}
	return utils.SendSuccess(c, "school statistics", overview)
}

func (h *AdminStatisticsHandler) trend(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	trend, err := h.snapshots.Trend(c.Context(), c.Query("type"), limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSnapshotType) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load statistics trend")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load statistics trend")
	}
	return utils.SendSuccess(c, "statistics trend", trend)
}
