package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/scheduler"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// TaskController is the subset of the scheduler the admin console drives.
type TaskController interface {
	Status() []scheduler.TaskStatus
	Trigger(name string) error
	Restart(name string) (scheduler.TaskStatus, error)
}

// AdminSchedulerHandler exposes manual control over the pipeline tasks.
type AdminSchedulerHandler struct {
	tasks       TaskController
	snapshots   service.SnapshotService
	publication service.PublicationService
	activity    service.ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAdminSchedulerHandler constructs the handler. The activity recorder is optional.
func NewAdminSchedulerHandler(
	tasks TaskController,
	snapshots service.SnapshotService,
	publication service.PublicationService,
	activity service.ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) *AdminSchedulerHandler {
	return &AdminSchedulerHandler{
		tasks:       tasks,
		snapshots:   snapshots,
		publication: publication,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "admin_scheduler_handler").Logger(),
	}
}

// Register wires scheduler routes.
func (h *AdminSchedulerHandler) Register(router fiber.Router) {
	router.Get("/tasks", h.listTasks)
	router.Post("/tasks/:name/run", h.runTask)
	router.Post("/tasks/:name/restart", h.restartTask)
	router.Post("/snapshots", h.captureSnapshot)
	router.Post("/assignments/activate", h.activateAssignments)
}

func (h *AdminSchedulerHandler) listTasks(c *fiber.Ctx) error {
	statuses := h.tasks.Status()
	items := make([]dto.TaskStatusResponse, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, newTaskStatusResponse(status))
	}
	return utils.SendSuccess(c, "scheduler tasks", items)
}

func (h *AdminSchedulerHandler) runTask(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	if err := h.tasks.Trigger(name); err != nil {
		return h.taskError(c, err, "failed to trigger task")
	}

	h.record(c, models.ActivityActionTaskTriggered, name)
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "task triggered", dto.TaskTriggerResponse{
		Task:        name,
		Accepted:    true,
		TriggeredAt: time.Now().UTC(),
	})
}

func (h *AdminSchedulerHandler) restartTask(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	status, err := h.tasks.Restart(name)
	if err != nil {
		return h.taskError(c, err, "failed to restart task")
	}

	h.record(c, models.ActivityActionTaskRestarted, name)
	return utils.SendSuccess(c, "task restarted", newTaskStatusResponse(status))
}

func (h *AdminSchedulerHandler) captureSnapshot(c *fiber.Ctx) error {
	var req dto.SnapshotCaptureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		req.Type = models.SnapshotManual
	}

	snapshot, err := h.snapshots.Capture(c.Context(), req.Type)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSnapshotType) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Str("type", req.Type).Msg("failed to capture snapshot")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to capture snapshot")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "snapshot captured", dto.NewTrendPoint(snapshot))
}

func (h *AdminSchedulerHandler) activateAssignments(c *fiber.Ctx) error {
	response, err := h.publication.PublishDue(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to publish due assignments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to publish due assignments")
	}
	return utils.SendSuccess(c, "due assignments published", response)
}

func (h *AdminSchedulerHandler) taskError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, scheduler.ErrTaskRunning):
		return utils.SendError(c, fiber.StatusConflict, "task is already running")
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("task", c.Params("name")).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}

func (h *AdminSchedulerHandler) record(c *fiber.Ctx, action, task string) {
	if h.activity == nil {
		return
	}
	actor := activityActorFromContext(c)
	_, err := h.activity.Record(c.Context(), service.ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "scheduler_task",
		Metadata:   map[string]interface{}{"task": task},
	})
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Str("task", task).Msg("failed to record scheduler activity")
	}
}

func newTaskStatusResponse(status scheduler.TaskStatus) dto.TaskStatusResponse {
	return dto.TaskStatusResponse{
		Name:           status.Name,
		Spec:           status.Spec,
		Running:        status.Running,
		LastRunAt:      status.LastRunAt,
		LastDurationMs: status.LastDuration.Milliseconds(),
		LastError:      status.LastError,
		LastTrigger:    status.LastTrigger,
		Runs:           status.Runs,
		Failures:       status.Failures,
		Skips:          status.Skips,
		NextRunAt:      status.NextRun,
	}
}
