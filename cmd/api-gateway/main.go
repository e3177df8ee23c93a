package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/shiksha-labs/shiksha-api/internal/handler"
	"github.com/shiksha-labs/shiksha-api/internal/middleware"
	"github.com/shiksha-labs/shiksha-api/internal/repository"
	"github.com/shiksha-labs/shiksha-api/internal/service"
	"github.com/shiksha-labs/shiksha-api/pkg/cache"
	"github.com/shiksha-labs/shiksha-api/pkg/config"
	"github.com/shiksha-labs/shiksha-api/pkg/database"
	"github.com/shiksha-labs/shiksha-api/pkg/jobs"
	"github.com/shiksha-labs/shiksha-api/pkg/logger"
	corsmiddleware "github.com/shiksha-labs/shiksha-api/pkg/middleware/cors"
	reqidmiddleware "github.com/shiksha-labs/shiksha-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		if cfg.Cache.Enabled {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if !cfg.Cache.Enabled {
		redisClient = nil
	}

	validate := validator.New()

	timetableRepo := repository.NewTimetableRepository(db)
	assignmentRepo := repository.NewStaffingAssignmentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metrics := service.NewMetricsService()
	timetableSvc := service.NewTimetableService(timetableRepo, subjectRepo, redisClient, cfg.Cache.TimetableTTL, logr)
	engine := service.NewTimetableEngine(
		assignmentRepo,
		subjectRepo,
		classRepo,
		timetableRepo,
		timetableRepo,
		auditRepo,
		timetableSvc,
		metrics,
		validate,
		logr,
		cfg.Scheduling,
	)
	importSvc := service.NewTimetableImportService(timetableRepo, timetableRepo, auditRepo, timetableSvc, nil, logr)
	catalogSvc := service.NewCatalogService(subjectRepo, classRepo, sessionRepo, assignmentRepo, auditRepo, validate, logr)
	auditSvc := service.NewAuditService(auditRepo)

	queue := jobs.NewQueue("session-generation", handler.SessionGenerationHandler(engine, logr), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.NewHealthHandler(db, redisClient).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	handler.NewCatalogHandler(catalogSvc).RegisterRoutes(api)
	handler.NewAuditHandler(auditSvc).RegisterRoutes(api)

	timetableHandler := handler.NewTimetableHandler(engine, timetableSvc, importSvc, queue, logr)
	timetableHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
