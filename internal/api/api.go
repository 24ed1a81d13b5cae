// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/api/handlers"
	"github.com/andresuchdata/stockzero/backend-go/internal/api/middleware"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxUploadMemory = 32 << 20

type Services struct {
	ImportService     *service.ImportService
	AnalysisService   *service.AnalysisService
	SimulationService *service.SimulationService
	InsightsService   *service.InsightsService

	Pipeline        *pipeline.Orchestrator
	PipelineRuns    pipeline.Repository
	PipelineSources map[string]pipeline.Source
}

// NewRouter builds the HTTP API. metricsHandler, when non-nil, is served on /metrics.
func NewRouter(services *Services, allowedOrigins []string, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxUploadMemory

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.ImportService != nil {
			importHandler := handlers.NewImportHandler(services.ImportService)
			apiGroup.POST("/sales/upload", importHandler.UploadSales)
			apiGroup.POST("/receipts/upload", importHandler.UploadReceipts)
			apiGroup.POST("/stock/upload", importHandler.UploadStock)
		}

		if services.AnalysisService != nil {
			analysisHandler := handlers.NewAnalysisHandler(services.AnalysisService)
			analysisGroup := apiGroup.Group("/analysis")
			{
				analysisGroup.POST("/run", analysisHandler.RunAnalysis)
				analysisGroup.GET("/latest", analysisHandler.GetLatest)
				analysisGroup.GET("/runs", analysisHandler.ListRuns)
				analysisGroup.GET("/runs/:id", analysisHandler.GetRun)
				analysisGroup.GET("/runs/:id/export", analysisHandler.ExportRun)
			}
			apiGroup.GET("/products/:product/metrics", analysisHandler.GetProductMetrics)
		}

		if services.SimulationService != nil {
			simulationHandler := handlers.NewSimulationHandler(services.SimulationService)
			apiGroup.GET("/products/:product/simulation", simulationHandler.Simulate)
		}

		if services.InsightsService != nil {
			insightsHandler := handlers.NewInsightsHandler(services.InsightsService)
			insightsGroup := apiGroup.Group("/insights")
			{
				insightsGroup.GET("/dashboard", insightsHandler.GetDashboard)
				insightsGroup.GET("/recommendations", insightsHandler.GetRecommendations)
			}
		}

		if services.Pipeline != nil && services.PipelineRuns != nil {
			pipelineHandler := handlers.NewPipelineHandler(services.Pipeline, services.PipelineRuns, services.PipelineSources)
			pipelineGroup := apiGroup.Group("/pipeline")
			{
				pipelineGroup.POST("/run", pipelineHandler.TriggerRun)
				pipelineGroup.POST("/retry", pipelineHandler.RetryFailed)
				pipelineGroup.GET("/runs", pipelineHandler.ListRuns)
				pipelineGroup.GET("/runs/:id", pipelineHandler.GetRun)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
