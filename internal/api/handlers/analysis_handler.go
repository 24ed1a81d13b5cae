package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// RunAnalysis runs a batch over the stored history. Fields missing from the
// body keep the configured defaults; an explicit 0 safety stock is honoured.
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	params := h.analysisService.Defaults()
	if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis parameters", "details": err.Error()})
		return
	}

	report, err := h.analysisService.Run(c.Request.Context(), params, "api")
	if err != nil {
		writeError(c, err, "failed to run analysis")
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *AnalysisHandler) GetLatest(c *gin.Context) {
	report, err := h.analysisService.Latest(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch latest analysis")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalysisHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)
	runs, err := h.analysisService.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "failed to fetch analysis runs")
		return
	}
	if runs == nil {
		runs = make([]domain.AnalysisRun, 0)
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *AnalysisHandler) GetRun(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	report, err := h.analysisService.Get(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err, "failed to fetch analysis run")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalysisHandler) ExportRun(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	format, err := service.ParseExportFormat(strings.ToLower(c.Query("format")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid export format", "details": err.Error()})
		return
	}

	body, err := h.analysisService.Export(c.Request.Context(), runID, format)
	if err != nil {
		writeError(c, err, "failed to export analysis run")
		return
	}

	contentType := "text/csv"
	if format == service.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reorder_%s.%s", runID, format))
	c.Data(http.StatusOK, contentType, body)
}

// GetProductMetrics returns one product from the latest run.
func (h *AnalysisHandler) GetProductMetrics(c *gin.Context) {
	m, err := h.analysisService.Product(c.Request.Context(), c.Param("product"))
	if err != nil {
		writeError(c, err, "failed to fetch product metrics")
		return
	}
	c.JSON(http.StatusOK, m)
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id", "details": err.Error()})
		return uuid.Nil, false
	}
	return runID, true
}
