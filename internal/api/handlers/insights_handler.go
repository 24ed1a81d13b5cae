package handlers

import (
	"net/http"
	"sort"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type InsightsHandler struct {
	insightsService *service.InsightsService
}

func NewInsightsHandler(insightsService *service.InsightsService) *InsightsHandler {
	return &InsightsHandler{insightsService: insightsService}
}

// parseRequest reads period_days, product, from, to and the optional
// current_stock[<product>]=<qty> overrides.
func (h *InsightsHandler) parseRequest(c *gin.Context) (service.DashboardRequest, error) {
	req := service.DashboardRequest{
		PeriodDays: parsePositiveIntWithDefault(c.Query("period_days"), 0),
	}
	req.Filter.Products = queryList(c, "product")

	var err error
	if req.Filter.From, err = queryDate(c, "from"); err != nil {
		return req, err
	}
	if req.Filter.To, err = queryDate(c, "to"); err != nil {
		return req, err
	}

	if overrides := c.QueryMap("current_stock"); len(overrides) > 0 {
		req.Stocks = make([]domain.ProductStock, 0, len(overrides))
		for product, raw := range overrides {
			qty, err := parseFinite(raw)
			if err != nil {
				return req, err
			}
			req.Stocks = append(req.Stocks, domain.ProductStock{Product: product, CurrentStock: qty})
		}
		sort.Slice(req.Stocks, func(i, j int) bool { return req.Stocks[i].Product < req.Stocks[j].Product })
	}
	return req, nil
}

func (h *InsightsHandler) GetDashboard(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dashboard filter", "details": err.Error()})
		return
	}

	dashboard, err := h.insightsService.Dashboard(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to build dashboard")
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// GetRecommendations returns only the recommendation list of the dashboard.
func (h *InsightsHandler) GetRecommendations(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dashboard filter", "details": err.Error()})
		return
	}

	dashboard, err := h.insightsService.Dashboard(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to build recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": dashboard.Recommendations})
}
