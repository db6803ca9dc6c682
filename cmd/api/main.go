package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/cache"
	"github.com/cleberrangel/epic-forecast-api/internal/classifier"
	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/database"
	"github.com/cleberrangel/epic-forecast-api/internal/handler"
	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/middleware"
	"github.com/cleberrangel/epic-forecast-api/internal/migration"
	"github.com/cleberrangel/epic-forecast-api/internal/repository"
	"github.com/cleberrangel/epic-forecast-api/internal/service"
)

const Version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogJSON)
	logger.InitAudit()
	metrics.Init()

	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Str("classifier", string(cfg.Classifier.Provider)).
		Msg("Epic forecast API starting")

	db, err := database.Connect(database.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	if err := migration.NewMigrator(db).Run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories
	hoursRepo := repository.NewHoursRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	baselineRepo := repository.NewBaselineRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	projectRepo := repository.NewProjectConfigRepository(db)
	lockRepo := repository.NewLockRepository(db)

	// Classifier: the TF-IDF fallback is always built and seeded with
	// the stored mappings; an LLM provider fronts it when configured.
	learned, err := mappingRepo.ListBaselineMappings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stored mappings")
	}
	tfidf := classifier.NewTFIDFProvider(learned)

	var provider classifier.Provider = tfidf
	if cfg.Classifier.Provider != config.ProviderTFIDF {
		llm, err := classifier.NewLLMProvider(cfg.Classifier)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build classifier provider")
		}
		provider = llm
	}
	cls := classifier.New(mappingRepo, provider, tfidf, cfg.Classifier)

	// Services
	baselineCache := cache.NewCache(30 * time.Minute)
	defer baselineCache.Stop()

	baselineService := service.NewBaselineService(cfg.Baseline)
	hoursService := service.NewHoursService(hoursRepo, cls)
	recomputeService := service.NewRecomputeService(
		hoursRepo, baselineRepo, mappingRepo, lockRepo, cls, baselineService, baselineCache, cfg)
	forecastService := service.NewForecastService(
		forecastRepo, projectRepo, baselineRepo, hoursRepo, mappingRepo, cls, baselineCache, cfg.Forecast)
	exportService := service.NewExportService()

	scheduler := service.NewScheduler(recomputeService, cfg.RecomputeSchedule)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer scheduler.Stop()

	// Handlers
	hoursHandler := handler.NewHoursHandler(hoursService)
	forecastHandler := handler.NewForecastHandler(forecastService, exportService)
	baselineHandler := handler.NewBaselineHandler(baselineRepo, recomputeService)
	mappingHandler := handler.NewMappingHandler(mappingRepo, cls)
	projectHandler := handler.NewProjectConfigHandler(projectRepo)
	budgetHandler := handler.NewBudgetHandler(forecastRepo)
	healthHandler := handler.NewHealthHandler(db, Version)

	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(gin.Recovery())

	// Public probes
	r.GET("/health", healthHandler.DetailedHealthCheck)
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/metrics", healthHandler.GetMetrics)
	r.GET("/debug/memory", healthHandler.GetMemoryStats)

	// Protected API
	api := r.Group("/api/v1")
	api.Use(middleware.BearerAuth(middleware.AuthConfig{
		TokenAPI:     cfg.TokenAPI,
		TokenAPIHash: cfg.TokenAPIHash,
	}))
	{
		api.POST("/hours", hoursHandler.Upsert)
		api.GET("/projects/:project/hours", hoursHandler.ListByProject)

		api.POST("/forecasts", forecastHandler.Generate)
		api.GET("/forecasts/:id", forecastHandler.GetByID)
		api.GET("/forecasts/:id/export", forecastHandler.Export)
		api.GET("/projects/:project/forecasts", forecastHandler.ListByProject)

		api.GET("/baselines/hours", baselineHandler.ListHourBaselines)
		api.GET("/baselines/allocation", baselineHandler.ListAllocationBaselines)
		api.GET("/baselines/temporal", baselineHandler.ListTemporalBaselines)
		api.POST("/baselines/recompute", baselineHandler.Recompute)

		api.GET("/categories", mappingHandler.Categories)
		api.GET("/mappings", mappingHandler.List)
		api.GET("/mappings/unmapped", mappingHandler.ListUnmapped)
		api.POST("/mappings/override", mappingHandler.Override)

		api.PUT("/projects/:project/config", projectHandler.Upsert)
		api.GET("/projects/:project/config", projectHandler.Get)
		api.GET("/projects/included", projectHandler.ListIncluded)

		api.POST("/budgets/placeholder", budgetHandler.UpsertPlaceholder)
		api.POST("/budgets/import", budgetHandler.Import)
		api.GET("/projects/:project/budgets", budgetHandler.ListByProject)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown: let in-flight requests and a running recompute
	// finish before exiting.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}
