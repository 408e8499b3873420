package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mindpath/study-plan-api/internal/handler"
	"github.com/mindpath/study-plan-api/internal/llm"
	"github.com/mindpath/study-plan-api/internal/middleware"
	"github.com/mindpath/study-plan-api/internal/prompt"
	"github.com/mindpath/study-plan-api/internal/reference"
	"github.com/mindpath/study-plan-api/internal/repository"
	"github.com/mindpath/study-plan-api/internal/service"
	"github.com/mindpath/study-plan-api/pkg/cache"
	"github.com/mindpath/study-plan-api/pkg/config"
	"github.com/mindpath/study-plan-api/pkg/database"
	"github.com/mindpath/study-plan-api/pkg/export"
	"github.com/mindpath/study-plan-api/pkg/jobs"
	"github.com/mindpath/study-plan-api/pkg/logger"
	corsmiddleware "github.com/mindpath/study-plan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mindpath/study-plan-api/pkg/middleware/requestid"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	catalog, err := reference.Load(cfg.Reference.CatalogPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load subject catalog", "error", err)
	}
	logr.Sugar().Infow("subject catalog loaded", "version", catalog.Version(), "subjects", len(catalog.KnownSubjects()))

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	var cacheRepo *repository.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, snapshot caching disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	progressRepo := repository.NewProgressRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db, cacheRepo, cfg.Planner.SnapshotCacheTTL, metrics, logr)
	planRepo := repository.NewPlanRepository(db)

	generator := buildGenerator(cfg, logr)

	validate := validator.New()
	priorityService := service.NewPriorityService(catalog, validate, logr)
	conflictService := service.NewConflictService(progressRepo, performanceRepo, planRepo, catalog, cfg.Planner, logr)
	resolver := service.NewConflictResolver(cfg.Planner, logr)
	tokenService := service.NewTokenService(cfg.JWT.Secret, logr)

	loader := prompt.FSLoader{Dir: cfg.Prompts.TemplateDir}
	planService := service.NewPlanService(priorityService, conflictService, resolver, generator, loader, planRepo, cfg.Planner, metrics, validate, logr)

	var queue *jobs.Queue
	if cfg.Jobs.Enabled {
		queue = jobs.NewQueue("plan-generation", planService.ProcessGenerationJob, jobs.QueueConfig{
			Workers:    cfg.Jobs.WorkerConcurrency,
			MaxRetries: cfg.Jobs.WorkerRetries,
			RetryDelay: cfg.Jobs.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		planService.SetQueue(queue)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	if metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
		r.GET("/system/metrics", metricsHandler.Snapshot)
	}

	priorityHandler := handler.NewPriorityHandler(priorityService)
	conflictHandler := handler.NewConflictHandler(conflictService, resolver)
	planHandler := handler.NewPlanHandler(planService, catalog, export.NewCSVExporter(), export.NewPDFExporter())

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenService))
	{
		plans := api.Group("/study-plans")
		plans.POST("/priority", priorityHandler.Calculate)
		plans.POST("/conflicts", conflictHandler.Check)
		plans.POST("/conflicts/resolve", conflictHandler.Resolve)
		plans.POST("/generate", planHandler.Generate)
		plans.GET("", planHandler.List)
		plans.GET("/:id", planHandler.Get)
		if cfg.Exports.Enabled {
			plans.GET("/:id/export", planHandler.Export)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// buildGenerator wires the configured upstream client, falling back to
// the labeled placeholder in development when no API key is set.
func buildGenerator(cfg *config.Config, logr *zap.Logger) llm.Generator {
	if cfg.Generator.APIKey == "" {
		if cfg.Env == config.EnvProduction {
			logr.Sugar().Fatalw("generator api key is required in production")
		}
		logr.Sugar().Warnw("no generator api key configured, using labeled placeholder output", "provider", cfg.Generator.Provider)
		return llm.NewPlaceholder(logr)
	}

	client, err := llm.NewClient(llm.Config{
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		Timeout:     cfg.Generator.Timeout,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
	}, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build generator client", "error", err)
	}
	return client
}
