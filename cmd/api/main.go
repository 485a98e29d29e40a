package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/events"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/scheduler"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
	cloud "github.com/noah-isme/gema-lms-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events go to redis only")
		} else {
			defer natsConn.Drain()
		}
	}
	publisher := events.NewBrokerPublisher(redisClient, natsConn, cfg.EventsChannel, logger)

	var archiver service.ReportArchiver
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryReportFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = uploader
	}

	var evaluator ai.Evaluator
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai evaluator: %v", err)
		}
		evaluator = openAI
	} else {
		logger.Info().Msg("openai key not set, answers are graded by the heuristic")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	statsRepo := repository.NewStatisticsRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	needsHelpRepo := repository.NewNeedsHelpRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	parentReportRepo := repository.NewParentReportRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	statisticsService := service.NewStatisticsService(service.StatisticsRepositories{
		Stats:       statsRepo,
		Assignments: assignmentRepo,
		Progress:    progressRepo,
		Classes:     classRepo,
		Users:       userRepo,
		NeedsHelp:   needsHelpRepo,
		Snapshots:   snapshotRepo,
	}, redisClient, cfg.DashboardCacheTTL, service.RetentionPolicy{
		MetricsDays:   cfg.Retention.MetricsDays,
		SnapshotsDays: cfg.Retention.SnapshotsDays,
	}, logger)
	needsHelpService := service.NewNeedsHelpService(
		needsHelpRepo, userRepo, classRepo, assignmentRepo, progressRepo,
		activityService, publisher, redisClient, validate,
		analytics.Thresholds{
			MinRate:        cfg.NeedsHelp.MinRate,
			MinAnswers:     cfg.NeedsHelp.MinAnswers,
			MinAssignments: cfg.NeedsHelp.MinAssignments,
		},
		logger,
	)
	publicationService := service.NewPublicationService(assignmentRepo, publisher, logger)
	snapshotService := service.NewSnapshotService(snapshotRepo, statsRepo, statisticsService, logger)
	parentReportService := service.NewParentReportService(parentReportRepo, userRepo, statsRepo, needsHelpRepo, statisticsService, nil, archiver, logger)
	answerService := service.NewAnswerService(assignmentRepo, progressRepo, statisticsService, evaluator, validate, logger)

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid scheduler timezone: %v", err)
	}
	tasks := scheduler.New(logger,
		scheduler.WithLocation(location),
		scheduler.WithDefaultTimeout(cfg.Scheduler.Timeout),
		scheduler.WithLocker(scheduler.NewRedisLocker(redisClient, cfg.EventsChannel+":lock:"), cfg.Scheduler.LockTTL),
		scheduler.WithMetricRecorder(statsRepo),
		scheduler.WithPublisher(publisher),
	)
	err = scheduler.RegisterDefaults(tasks, cfg.Scheduler.Specs, scheduler.Runners{
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
		SendParentReports: func(ctx context.Context) error {
			_, err := parentReportService.Run(ctx)
			return err
		},
	})
	if err != nil {
		log.Fatalf("failed to register scheduler tasks: %v", err)
	}

	adminSchedulerHandler := handler.NewAdminSchedulerHandler(tasks, snapshotService, publicationService, activityService, validate, logger)
	adminStatisticsHandler := handler.NewAdminStatisticsHandler(statisticsService, snapshotService, logger)
	adminActivityHandler := handler.NewAdminActivityHandler(activityService, logger)
	teacherStatisticsHandler := handler.NewTeacherStatisticsHandler(statisticsService, needsHelpService, validate, logger)
	studentHandler := handler.NewStudentHandler(answerService, statisticsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AdminSchedulerHandler:    adminSchedulerHandler,
		AdminStatisticsHandler:   adminStatisticsHandler,
		AdminActivityHandler:     adminActivityHandler,
		TeacherStatisticsHandler: teacherStatisticsHandler,
		StudentHandler:           studentHandler,
		JWTMiddleware:            middleware.JWTProtected(cfg.JWTSecret),
	})

	if cfg.Scheduler.Enabled {
		tasks.Start(context.Background())
	} else {
		logger.Info().Msg("scheduler disabled, tasks run only when triggered")
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, tasks)
}

func waitForShutdown(app *fiber.App, tasks *scheduler.Scheduler) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	tasks.Stop()
	log.Println("server stopped")
}
