// cmd/api serves the Google Drive browsing and ingest endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/drive"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/andresuchdata/stockzero/backend-go/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	logger.Configure(cfg.Server.LogLevel, cfg.Server.LogJSON)

	ctx := context.Background()

	// Initialize Google Drive service
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	// Initialize Database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	analysisCache, err := cache.NewAnalysisCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
		analysisCache = cache.NewNoopAnalysisCache()
	}

	// Initialize Services
	importService := service.NewImportService(postgres.NewStore(db), analysisCache, nil)
	ingestService := drive.NewIngestService(driveService, importService)

	// Create router
	r := mux.NewRouter()

	// Register routes
	driveHandler := drive.NewHandler(driveService, ingestService)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("Drive server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("Drive server stopped")
	}
}
