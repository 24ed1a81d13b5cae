package handlers

import (
	"net/http"

	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type SimulationHandler struct {
	simulationService *service.SimulationService
}

func NewSimulationHandler(simulationService *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{simulationService: simulationService}
}

// Simulate handles GET /products/:product/simulation?current_stock=&horizon_days=&today=
func (h *SimulationHandler) Simulate(c *gin.Context) {
	req := service.SimulationRequest{
		Product:     c.Param("product"),
		HorizonDays: parsePositiveIntWithDefault(c.Query("horizon_days"), 0),
	}

	stock, err := queryFloat(c, "current_stock")
	if err != nil || (stock != nil && *stock < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_stock must be a non-negative number"})
		return
	}
	req.CurrentStock = stock

	if req.Today, err = queryDate(c, "today"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "today must be formatted as YYYY-MM-DD", "details": err.Error()})
		return
	}

	trace, err := h.simulationService.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to simulate inventory")
		return
	}
	c.JSON(http.StatusOK, trace)
}
