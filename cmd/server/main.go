// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/api"
	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/andresuchdata/stockzero/backend-go/internal/simulation"
	"github.com/andresuchdata/stockzero/backend-go/internal/storage"
	"github.com/andresuchdata/stockzero/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Server.LogLevel, cfg.Server.LogJSON)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	analysisCache, err := cache.NewAnalysisCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
		analysisCache = cache.NewNoopAnalysisCache()
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Object storage disabled")
		} else {
			objects = s3
		}
	}

	// Initialize services
	store := postgres.NewStore(db)
	analyzer := reorder.NewAnalyzer(forecast.NewForecaster(cfg.Forecast.FitTimeout()), cfg.Forecast.Workers, recorder)
	analysisService := service.NewAnalysisService(store, analyzer, analysisCache, objects, cfg.Forecast.Params())
	importService := service.NewImportService(store, analysisCache, recorder)

	pipelineRuns := pipeline.NewSQLRepository(db.DB)
	orchestrator := pipeline.NewOrchestrator(pipeline.NewConfig("api", cfg), pipelineRuns, importService, analysisService, recorder)

	services := &api.Services{
		ImportService:     importService,
		AnalysisService:   analysisService,
		SimulationService: service.NewSimulationService(store, analysisService, analyzer, simulation.NewSimulator(recorder), analysisCache, cfg.Forecast.ProjectionHorizonDays),
		InsightsService:   service.NewInsightsService(store, analysisService, analysisCache),
		Pipeline:          orchestrator,
		PipelineRuns:      pipelineRuns,
		PipelineSources:   pipeline.BuildSources(ctx, cfg, objects),
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
