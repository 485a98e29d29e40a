package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AdminSchedulerHandler    *handler.AdminSchedulerHandler
	AdminStatisticsHandler   *handler.AdminStatisticsHandler
	AdminActivityHandler     *handler.AdminActivityHandler
	TeacherStatisticsHandler *handler.TeacherStatisticsHandler
	StudentHandler           *handler.StudentHandler
	JWTMiddleware            fiber.Handler
	DisableMetrics           bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if !deps.DisableMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.AdminSchedulerHandler != nil {
		deps.AdminSchedulerHandler.Register(admin.Group("/scheduler"))
	}
	if deps.AdminStatisticsHandler != nil {
		deps.AdminStatisticsHandler.Register(admin.Group("/statistics"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}

	if deps.TeacherStatisticsHandler != nil {
		teacher := app.Group("/api/teacher", jwtMiddleware, middleware.RequireRole(models.RoleAdmin, models.RoleTeacher))
		deps.TeacherStatisticsHandler.Register(teacher)
	}

	if deps.StudentHandler != nil {
		studentOnly := middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{Role: middleware.AuthRoleStudent})
		student := app.Group("/api/student", jwtMiddleware, studentOnly)
		deps.StudentHandler.Register(student, middleware.RateLimit("answers", cfg.AnswerRateLimit, time.Minute))
	}
}
