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
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradebook-api/api/swagger"
	"github.com/noah-isme/gradebook-api/internal/events"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/validation"
	"github.com/noah-isme/gradebook-api/pkg/cache"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/database"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
	"github.com/noah-isme/gradebook-api/pkg/logger"
)

// @title Gradebook API
// @version 1.0.0
// @description Grade records, weighted averages and cohort pass rates.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grades := repository.NewGradeRepository(db)
	if err := grades.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate grade tables: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(nil, logr)
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	defer cacheRepo.Close()

	calc, err := grading.NewCalculator(grading.Weights{
		Exam:     cfg.Grading.ExamWeight,
		Quiz:     cfg.Grading.QuizWeight,
		Homework: cfg.Grading.HomeworkWeight,
	})
	if err != nil {
		return fmt.Errorf("grade weights: %w", err)
	}
	overallCmp, err := grading.ParseComparison(cfg.Grading.OverallComparison)
	if err != nil {
		return fmt.Errorf("GRADE_OVERALL_COMPARISON: %w", err)
	}
	classCmp, err := grading.ParseComparison(cfg.Grading.ClassComparison)
	if err != nil {
		return fmt.Errorf("GRADE_CLASS_COMPARISON: %w", err)
	}

	action, err := validation.ParseAction(cfg.Validation.Action)
	if err != nil {
		return err
	}
	schema, err := validation.NewRecordValidator(validation.Limits{
		ClassIDMin: cfg.Validation.ClassIDMin,
		ClassIDMax: cfg.Validation.ClassIDMax,
	}, action, logr.Named("validation"))
	if err != nil {
		return fmt.Errorf("compile record schema: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	analytics := service.NewAnalyticsService(grades, grading.NewEngine(calc), cacheSvc, metrics, service.AnalyticsDefaults{
		Threshold:         cfg.Grading.PassThreshold,
		OverallComparison: overallCmp,
		ClassComparison:   classCmp,
	}, logr.Named("analytics"))

	bus, err := events.NewBus(cfg.Events, logr.Named("events"))
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer bus.Close() //nolint:errcheck

	queue := jobs.NewQueue("cache", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	consumer := events.NewInvalidationConsumer(queue, analytics, metrics, logr.Named("invalidation"))
	queue.Start(ctx)
	defer queue.Stop()
	if err := bus.Consume(ctx, consumer.Handle); err != nil {
		return fmt.Errorf("subscribe grade events: %w", err)
	}

	validate := validator.New()
	auth := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	gradeSvc := service.NewGradeService(grades, schema, bus, validate, logr.Named("grades"))
	exports := service.NewExportService(analytics, logr.Named("exports"))

	checks := map[string]handler.Pinger{"database": grades}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	router := newRouter(cfg, logr, routerDeps{
		auth:      auth,
		metrics:   metrics,
		grades:    handler.NewGradeHandler(gradeSvc),
		analytics: handler.NewAnalyticsHandler(analytics),
		reports:   handler.NewReportHandler(exports),
		authH:     handler.NewAuthHandler(auth),
		health:    handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("events", bus.Transport()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
