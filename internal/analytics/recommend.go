package analytics

import (
	"fmt"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
)

const (
	declineThreshold       = -10.0
	volatilityThreshold    = 50.0
	concentrationThreshold = 80.0
	outOfStockThreshold    = 10.0
	excessStockFactor      = 2.0
	minTurnover            = 1.0
	maxDaysOfInventory     = 60.0
	minFillRate            = 95.0
	minForecastAccuracy    = 70.0
)

// Recommend derives action items from the indicators. Inventory and efficiency
// rules only apply when stock levels were supplied. When nothing fires a
// single all-good entry is returned.
func Recommend(sales domain.SalesIndicators, inv domain.InventoryIndicators, eff domain.EfficiencyIndicators) []domain.Recommendation {
	var out []domain.Recommendation
	add := func(area domain.RecommendationArea, format string, args ...any) {
		out = append(out, domain.Recommendation{Area: area, Message: fmt.Sprintf(format, args...)})
	}

	if sales.GrowthPercent < declineThreshold {
		add(domain.AreaSales, "Sales are declining (%.1f%%). Review pricing, promotions or competition.", sales.GrowthPercent)
	}
	if sales.CoefficientOfVariation > volatilityThreshold {
		add(domain.AreaVolatility, "High sales variability (CV %.1f%%). Collect more history to sharpen forecasts.", sales.CoefficientOfVariation)
	}
	if sales.ConcentrationPercent > concentrationThreshold {
		add(domain.AreaPortfolio, "%.1f%% of sales come from the top 20%% of products. Diversify or focus on key products.", sales.ConcentrationPercent)
	}

	if inv.TotalProducts > 0 {
		if inv.OutOfStockPercent > outOfStockThreshold {
			add(domain.AreaStockout, "%.1f%% of products are out of stock. Review reorder points now.", inv.OutOfStockPercent)
		}
		if n := inv.StatusCounts[domain.StockCritical]; n > 0 {
			add(domain.AreaCritical, "%d products are at or below their reorder point. Place purchase orders today.", n)
		}
		if inv.TotalStock > sales.TotalSales*excessStockFactor {
			add(domain.AreaExcess, "Stock on hand exceeds twice the sales volume. Reduce orders or move inventory.")
		}

		if eff.InventoryTurnover < minTurnover {
			add(domain.AreaTurnover, "Inventory turnover is low (%.2f). Review slow-moving products.", eff.InventoryTurnover)
		}
		if eff.DaysOfInventory > maxDaysOfInventory {
			add(domain.AreaCoverage, "%.0f days of inventory on hand. Consider clearing old stock.", eff.DaysOfInventory)
		}
		if eff.FillRatePercent < minFillRate {
			add(domain.AreaFillRate, "Fill rate is %.1f%%. Raise safety stock or shorten lead times.", eff.FillRatePercent)
		}
		if sales.AvgDailySales > 0 && eff.ForecastAccuracyHint < minForecastAccuracy {
			add(domain.AreaForecast, "Forecast accuracy is low (%.1f). Segment products by season.", eff.ForecastAccuracyHint)
		}
	}

	if len(out) == 0 {
		add(domain.AreaAllGood, "All indicators are within their target ranges.")
	}
	return out
}
