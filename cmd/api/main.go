package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/tutorlink/tutoring-api/api/swagger"
	"github.com/tutorlink/tutoring-api/internal/repository"
	"github.com/tutorlink/tutoring-api/internal/router"
	"github.com/tutorlink/tutoring-api/internal/service"
	"github.com/tutorlink/tutoring-api/pkg/cache"
	"github.com/tutorlink/tutoring-api/pkg/config"
	"github.com/tutorlink/tutoring-api/pkg/database"
	"github.com/tutorlink/tutoring-api/pkg/logger"
)

// @title TutorLink API
// @version 1.0.0
// @description Tutoring platform REST API
// @BasePath /api
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	slotRepo := repository.NewAvailabilityRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, appointmentRepo, assignmentRepo, redisClient,
		cfg.Cache.UnreadCountTTL, cfg.Notifications.ReminderWindow, validate, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:           cfg.JWT.Secret,
		Expiration:       cfg.JWT.Expiration,
		Issuer:           cfg.JWT.Issuer,
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
		LockoutDuration:  cfg.Auth.LockoutDuration,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	availabilitySvc := service.NewAvailabilityService(slotRepo, userRepo, validate, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, userRepo, slotRepo, notificationSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, materialRepo, notificationSvc, validate, logr)
	materialSvc := service.NewMaterialService(materialRepo, redisClient, cfg.Cache.PopularMaterialsTTL, validate, logr)
	progressSvc := service.NewProgressService(progressRepo, userRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, appointmentRepo, assignmentRepo, progressRepo, notificationSvc,
		service.ReportQueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: cfg.Reports.RetryDelay,
		}, validate, logr)
	metricsSvc := service.NewMetricsService()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSvc.Start(ctx)
	defer reportSvc.Stop()

	var sweeper *cron.Cron
	if cfg.Notifications.SweepEnabled {
		sweeper = cron.New()
		if _, err := sweeper.AddFunc(cfg.Notifications.SweepSchedule, func() {
			if _, err := notificationSvc.Sweep(context.Background()); err != nil {
				logr.Error("notification sweep failed", zap.Error(err))
			}
		}); err != nil {
			logr.Fatal("invalid sweep schedule", zap.Error(err))
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	engine := router.New(cfg, logr, router.Services{
		Auth:          authSvc,
		Users:         userSvc,
		Availability:  availabilitySvc,
		Appointments:  appointmentSvc,
		Assignments:   assignmentSvc,
		Materials:     materialSvc,
		Progress:      progressSvc,
		Reports:       reportSvc,
		Notifications: notificationSvc,
		Metrics:       metricsSvc,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
