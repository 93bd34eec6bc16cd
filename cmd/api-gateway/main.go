package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/notebook-tracker-api/api/swagger"
	"github.com/noah-isme/notebook-tracker-api/internal/handler"
	"github.com/noah-isme/notebook-tracker-api/internal/repository"
	"github.com/noah-isme/notebook-tracker-api/internal/service"
	"github.com/noah-isme/notebook-tracker-api/pkg/cache"
	"github.com/noah-isme/notebook-tracker-api/pkg/config"
	"github.com/noah-isme/notebook-tracker-api/pkg/database"
	"github.com/noah-isme/notebook-tracker-api/pkg/export"
	"github.com/noah-isme/notebook-tracker-api/pkg/jobs"
	"github.com/noah-isme/notebook-tracker-api/pkg/logger"
	"github.com/noah-isme/notebook-tracker-api/pkg/notify"
)

// @title Notebook Tracker API
// @version 1.0.0
// @description Notebook submission tracking, defaulter risk scoring and guardian notifications
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const notificationQueue = "notifications"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Analytics.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "notebook-tracker-api",
	})
	studentSvc := service.NewStudentService(studentRepo, classRepo, auditRepo, cacheSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		Cycles:      cycleRepo,
		Submissions: submissionRepo,
		Classes:     classRepo,
		Subjects:    subjectRepo,
		Students:    studentRepo,
		Audit:       auditRepo,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
	})
	analyticsSvc := service.NewAnalyticsService(submissionRepo, studentRepo, classRepo, cycleRepo, cacheSvc, metricsSvc, logr, service.AnalyticsConfig{
		DefaultThreshold: cfg.Analytics.DefaulterThreshold,
		Concurrency:      cfg.Analytics.ScoringConcurrency,
		CacheTTL:         cfg.Analytics.CacheTTL,
	})
	exportSvc := service.NewExportService(analyticsSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	dispatcher, err := notify.New(cfg.Notify, cfg.SMTP, logr)
	if err != nil {
		logr.Fatal("notification dispatcher", zap.Error(err))
	}
	notificationSvc := service.NewNotificationService(service.NotificationServiceParams{
		Submissions: submissionRepo,
		Students:    studentRepo,
		Cycles:      cycleRepo,
		Dispatcher:  dispatcher,
		Audit:       auditRepo,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Logger:      logr,
		Template:    cfg.Notify.Template,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := jobs.NewQueue(notificationQueue, notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	notificationSvc.UseQueue(queue)
	if err := metricsSvc.TrackQueue(notificationQueue, queue.Stats); err != nil {
		logr.Warn("queue metrics not registered", zap.Error(err))
	}

	r := newRouter(cfg, logr, routerDeps{
		tokens:        authSvc,
		audit:         auditRepo,
		metrics:       metricsSvc,
		auth:          handler.NewAuthHandler(authSvc),
		students:      handler.NewStudentHandler(studentSvc),
		cycles:        handler.NewCycleHandler(submissionSvc),
		analytics:     handler.NewAnalyticsHandler(analyticsSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		exports:       handler.NewExportHandler(exportSvc),
		auditTrail:    handler.NewAuditHandler(service.NewAuditService(auditRepo, logr)),
		health: handler.NewMetricsHandler(metricsSvc, map[string]handler.HealthCheck{
			"database": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
