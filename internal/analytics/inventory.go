package analytics

import (
	"sort"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
)

const warningFactor = 1.5

// ClassifyStock buckets a stock level against a reorder point:
// critical at or below it, warning up to 1.5x, optimal above.
func ClassifyStock(currentStock, reorderPoint float64) domain.StockStatus {
	switch {
	case currentStock <= reorderPoint:
		return domain.StockCritical
	case currentStock <= reorderPoint*warningFactor:
		return domain.StockWarning
	default:
		return domain.StockOptimal
	}
}

// StockStatuses joins current stock with the reorder points of a report.
// Products missing from the report, or whose analysis failed, are compared
// against a reorder point of zero. The result is ordered by product.
func StockStatuses(stocks []domain.ProductStock, report *domain.AnalysisReport) []domain.ProductStockStatus {
	out := make([]domain.ProductStockStatus, 0, len(stocks))
	for _, s := range stocks {
		var rp float64
		if m, ok := report.Find(s.Product); ok {
			rp = m.ReorderPoint()
		}
		out = append(out, domain.ProductStockStatus{
			Product:      s.Product,
			CurrentStock: s.CurrentStock,
			ReorderPoint: rp,
			Status:       ClassifyStock(s.CurrentStock, rp),
			Shortage:     s.CurrentStock < rp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out
}

// InventoryIndicators aggregates stock levels, status counts and ABC counts.
func InventoryIndicators(statuses []domain.ProductStockStatus, report *domain.AnalysisReport) domain.InventoryIndicators {
	out := domain.InventoryIndicators{
		StatusCounts: map[domain.StockStatus]int{
			domain.StockCritical: 0,
			domain.StockWarning:  0,
			domain.StockOptimal:  0,
		},
		ABC: domain.ABCSummary{},
	}
	if report != nil && report.ABCSummary != nil {
		out.ABC = report.ABCSummary
	}

	for _, s := range statuses {
		out.TotalProducts++
		out.TotalStock += s.CurrentStock
		if s.CurrentStock > 0 {
			out.ProductsInStock++
		} else {
			out.ProductsOutOfStock++
		}
		out.StatusCounts[s.Status]++
	}

	if out.TotalProducts > 0 {
		out.AvgStockPerProduct = out.TotalStock / float64(out.TotalProducts)
		out.OutOfStockPercent = float64(out.ProductsOutOfStock) / float64(out.TotalProducts) * 100
	}
	return out
}

// EfficiencyIndicators relates the sales KPIs to the inventory KPIs.
func EfficiencyIndicators(sales domain.SalesIndicators, inv domain.InventoryIndicators) domain.EfficiencyIndicators {
	var out domain.EfficiencyIndicators
	if inv.TotalProducts == 0 {
		return out
	}

	if inv.TotalStock > 0 {
		out.InventoryTurnover = sales.TotalSales / inv.TotalStock
		if sales.AvgDailySales > 0 {
			out.DaysOfInventory = inv.TotalStock / sales.AvgDailySales
		}
	}

	total := float64(inv.TotalProducts)
	out.FillRatePercent = float64(inv.TotalProducts-inv.ProductsOutOfStock) / total * 100
	out.ServiceLevelPercent = float64(inv.TotalProducts-inv.StatusCounts[domain.StockCritical]) / total * 100
	if sales.AvgDailySales > 0 {
		out.ForecastAccuracyHint = max(0, 100-sales.CoefficientOfVariation)
	}
	return out
}
