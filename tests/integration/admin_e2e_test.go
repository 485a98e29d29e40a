package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/events"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/scheduler"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

type pipeline struct {
	app   *fiber.App
	db    *gorm.DB
	tasks *scheduler.Scheduler
	redis *redis.Client
}

func setupPipeline(t *testing.T) *pipeline {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:e2e_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	mini := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	publisher := events.NewBrokerPublisher(redisClient, nil, "gema:test", logger)

	statsRepo := repository.NewStatisticsRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	needsHelpRepo := repository.NewNeedsHelpRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	statisticsService := service.NewStatisticsService(service.StatisticsRepositories{
		Stats:       statsRepo,
		Assignments: assignmentRepo,
		Progress:    progressRepo,
		Classes:     classRepo,
		Users:       userRepo,
		NeedsHelp:   needsHelpRepo,
		Snapshots:   snapshotRepo,
	}, redisClient, time.Minute, service.RetentionPolicy{}, logger)
	needsHelpService := service.NewNeedsHelpService(needsHelpRepo, userRepo, classRepo, assignmentRepo, progressRepo,
		activityService, publisher, redisClient, validate, analytics.DefaultThresholds(), logger)
	publicationService := service.NewPublicationService(assignmentRepo, publisher, logger)
	snapshotService := service.NewSnapshotService(snapshotRepo, statsRepo, statisticsService, logger)
	answerService := service.NewAnswerService(assignmentRepo, progressRepo, statisticsService, nil, validate, logger)

	tasks := scheduler.New(logger,
		scheduler.WithLocker(scheduler.NewRedisLocker(redisClient, "gema:test:lock:"), time.Minute),
		scheduler.WithMetricRecorder(statsRepo),
		scheduler.WithPublisher(publisher),
	)
	require.NoError(t, scheduler.RegisterDefaults(tasks, config.DefaultTaskSpecs, scheduler.Runners{
		PublishAssignments: func(ctx context.Context) error {
			_, err := publicationService.PublishDue(ctx)
			return err
		},
		RefreshStatistics: func(ctx context.Context) error {
			_, err := statisticsService.RunSweep(ctx)
			return err
		},
		ClassifyStudents: func(ctx context.Context) error {
			_, err := needsHelpService.RunClassification(ctx)
			return err
		},
		CaptureSnapshot: func(ctx context.Context, snapshotType string) error {
			_, err := snapshotService.Capture(ctx, snapshotType)
			return err
		},
	}))
	t.Cleanup(tasks.Stop)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret", AnswerRateLimit: 100}, router.Dependencies{
		AdminSchedulerHandler:    handler.NewAdminSchedulerHandler(tasks, snapshotService, publicationService, activityService, validate, logger),
		AdminStatisticsHandler:   handler.NewAdminStatisticsHandler(statisticsService, snapshotService, logger),
		AdminActivityHandler:     handler.NewAdminActivityHandler(activityService, logger),
		TeacherStatisticsHandler: handler.NewTeacherStatisticsHandler(statisticsService, needsHelpService, validate, logger),
		StudentHandler:           handler.NewStudentHandler(answerService, statisticsService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			id, err := strconv.ParseUint(c.Get("X-User-ID"), 10, 64)
			if err != nil {
				return fiber.ErrUnauthorized
			}
			c.Locals("user_id", uint(id))
			c.Locals("user_role", c.Get("X-User-Role"))
			return c.Next()
		},
	})

	return &pipeline{app: app, db: db, tasks: tasks, redis: redisClient}
}

func (p *pipeline) call(t *testing.T, user models.User, method, target string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-User-Role", user.Role)

	resp, err := p.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func seedUser(t *testing.T, db *gorm.DB, role, name string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "@school.test", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedAssignment(t *testing.T, db *gorm.DB, teacherID, classID uint, due time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		Title:     "assignment due " + due.Format(time.RFC3339),
		TeacherID: teacherID,
		ClassID:   &classID,
		DueDate:   due,
		IsActive:  true,
	}
	for i := 1; i <= 5; i++ {
		assignment.Questions = append(assignment.Questions, models.Question{
			Prompt:         fmt.Sprintf("question %d", i),
			ExpectedAnswer: fmt.Sprintf("answer %d", i),
			Position:       i,
		})
	}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

func TestStatisticsPipelineEndToEnd(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	now := time.Now().UTC()

	admin := seedUser(t, p.db, models.RoleAdmin, "admin")
	teacher := seedUser(t, p.db, models.RoleTeacher, "teacher")
	student := seedUser(t, p.db, models.RoleStudent, "student")

	class := models.Class{Name: "XI-A", TeacherID: teacher.ID}
	require.NoError(t, p.db.Create(&class).Error)
	require.NoError(t, p.db.Create(&models.ClassStudent{ClassID: class.ID, StudentID: student.ID}).Error)

	// Three open assignments answered through the API with 2, 3 and 4 correct
	// answers, and one overdue assignment left untouched.
	for i, correct := range []int{2, 3, 4} {
		assignment := seedAssignment(t, p.db, teacher.ID, class.ID, now.AddDate(0, 0, 7+i))
		for q, question := range assignment.Questions {
			answer := "no idea"
			if q < correct {
				answer = "<p>" + question.ExpectedAnswer + "</p>"
			}
			resp := p.call(t, student, http.MethodPost, "/api/student/answers", map[string]interface{}{
				"assignment_id": assignment.ID,
				"question_id":   question.ID,
				"answer":        answer,
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)
		}
	}
	seedAssignment(t, p.db, teacher.ID, class.ID, now.AddDate(0, 0, -10))

	resp := p.call(t, admin, http.MethodPost, "/api/admin/statistics/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sweep envelope[dto.SweepReportResponse]
	decode(t, resp, &sweep)
	require.Equal(t, 4, sweep.Data.Assignments.Processed)
	require.Zero(t, sweep.Data.Assignments.Failed)
	require.True(t, sweep.Data.SchoolUpdated)

	assertStudentStats := func() {
		resp := p.call(t, student, http.MethodGet, "/api/student/statistics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var stats envelope[dto.StudentStatisticsResponse]
		decode(t, resp, &stats)
		require.Equal(t, 4, stats.Data.Stats.TotalAssignments)
		require.Equal(t, 3, stats.Data.Stats.CompletedAssignments)
		require.InDelta(t, 75.0, stats.Data.Stats.CompletionRate, 0.01)
		require.InDelta(t, 60.0, stats.Data.Stats.AverageScore, 0.01)
	}
	assertStudentStats()

	// A second sweep over unchanged data leaves the aggregates untouched.
	require.NoError(t, p.tasks.RunNow(ctx, scheduler.TaskStatistics))
	assertStudentStats()

	require.NoError(t, p.tasks.RunNow(ctx, scheduler.TaskNeedsHelp))
	resp = p.call(t, teacher, http.MethodGet, "/api/teacher/students/needs-help", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flagged envelope[[]dto.NeedsHelpResponse]
	decode(t, resp, &flagged)
	require.Len(t, flagged.Data, 1)
	require.Equal(t, student.ID, flagged.Data[0].StudentID)
	require.Contains(t, flagged.Data[0].Reasons, string(analytics.ReasonOverdueCompletion))

	resp = p.call(t, admin, http.MethodGet, "/api/admin/statistics/school", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overview envelope[dto.SchoolOverviewResponse]
	decode(t, resp, &overview)
	require.Equal(t, 1, overview.Data.Stats.TotalStudents)
	require.Equal(t, 4, overview.Data.Stats.ActiveAssignments)

	resp = p.call(t, teacher, http.MethodPost, fmt.Sprintf("/api/teacher/students/%d/needs-help/resolve", student.ID), map[string]string{"note": "called home"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.call(t, admin, http.MethodGet, "/api/admin/activity?action="+models.ActivityActionNeedsHelpResolved, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var activity envelope[[]dto.AdminActivityResponse]
	decode(t, resp, &activity)
	require.Len(t, activity.Data, 1)
	require.Equal(t, teacher.ID, activity.Data[0].ActorID)

	var metrics int64
	require.NoError(t, p.db.Model(&models.PerformanceMetric{}).Count(&metrics).Error)
	require.Equal(t, int64(2), metrics)
}

func TestScheduledPublicationEndToEnd(t *testing.T) {
	p := setupPipeline(t)
	now := time.Now().UTC()

	admin := seedUser(t, p.db, models.RoleAdmin, "admin")
	teacher := seedUser(t, p.db, models.RoleTeacher, "teacher")
	student := seedUser(t, p.db, models.RoleStudent, "student")

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	due := models.Assignment{Title: "due", TeacherID: teacher.ID, DueDate: now.AddDate(0, 0, 7), ScheduledPublishAt: &past}
	later := models.Assignment{Title: "later", TeacherID: teacher.ID, DueDate: now.AddDate(0, 0, 7), ScheduledPublishAt: &future}
	require.NoError(t, p.db.Create(&due).Error)
	require.NoError(t, p.db.Create(&later).Error)

	resp := p.call(t, admin, http.MethodPost, "/api/admin/scheduler/assignments/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first envelope[dto.PublicationResponse]
	decode(t, resp, &first)
	require.Equal(t, []uint{due.ID}, first.Data.Published)

	resp = p.call(t, admin, http.MethodPost, "/api/admin/scheduler/assignments/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second envelope[dto.PublicationResponse]
	decode(t, resp, &second)
	require.Zero(t, second.Data.Count)

	var published int64
	require.NoError(t, p.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActivityActionAssignmentPublished).Count(&published).Error)
	require.Equal(t, int64(1), published)

	// Role guards sit in front of every group.
	resp = p.call(t, student, http.MethodPost, "/api/admin/scheduler/assignments/activate", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = p.call(t, teacher, http.MethodGet, "/api/student/statistics", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = p.call(t, admin, http.MethodGet, "/api/admin/scheduler/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks envelope[[]dto.TaskStatusResponse]
	decode(t, resp, &tasks)
	require.Len(t, tasks.Data, 6)

	resp = p.call(t, admin, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
