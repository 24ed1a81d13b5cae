package reorder

import (
	"math"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// Calculator derives reorder metrics from a forecast and the sales series.
type Calculator struct {
	params domain.AnalysisParams
}

// NewCalculator creates a calculator for one batch configuration
func NewCalculator(params domain.AnalysisParams) *Calculator {
	return &Calculator{params: params.WithDefaults()}
}

// Calculate computes the reorder metrics of one product.
func (c *Calculator) Calculate(series domain.DailySeries, fc domain.ForecastResult) domain.ProductMetrics {
	// 1. Lead time demand = Σ forecast
	var leadTimeDemand float64
	for _, v := range fc.Values {
		leadTimeDemand += math.Max(0, v)
	}

	// 2. Average daily forecast = mean(forecast)
	var avg float64
	if len(fc.Values) > 0 {
		avg = leadTimeDemand / float64(len(fc.Values))
	}

	// 3. Safety stock = avg × safety stock days
	safetyStock := avg * float64(c.params.SafetyStockDays)

	// 4. Reorder point = lead time demand + safety stock
	reorderPoint := leadTimeDemand + safetyStock

	// 5. Order quantity covers half a seasonal cycle
	orderQuantity := avg * float64(c.params.SeasonalPeriodDays) / 2

	result := domain.ReorderResult{
		ReorderPoint:     round2(reorderPoint),
		OrderQuantity:    round2(orderQuantity),
		AvgDailyForecast: round2(avg),
		LeadTimeDemand:   round2(leadTimeDemand),
		SafetyStock:      round2(safetyStock),
		Forecast:         fc,
	}

	return domain.NewOkMetrics(series.Product, series.Len(), round2(series.Total()), result)
}

// Failed builds the error variant. The historical volume is still reported
// so the product stays visible to ranking and reporting.
func (c *Calculator) Failed(series domain.DailySeries, err error) domain.ProductMetrics {
	return domain.NewErrMetrics(series.Product, series.Len(), round2(series.Total()), err)
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
