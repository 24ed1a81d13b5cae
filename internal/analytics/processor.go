// internal/analytics/processor.go
package analytics

import (
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// Processor assembles the insights dashboard from sales history, current
// stock levels and the latest analysis report.
type Processor struct {
	periodDays int
	chartDays  int
	now        func() time.Time
}

func NewProcessor(periodDays int) *Processor {
	if periodDays <= 0 {
		periodDays = DefaultTrendPeriodDays
	}
	return &Processor{
		periodDays: periodDays,
		chartDays:  DefaultControlChartDays,
		now:        time.Now,
	}
}

// Build computes every indicator block. report may be nil when no analysis
// has been run yet; stock-dependent blocks are then computed without
// reorder points.
func (p *Processor) Build(sales []domain.SalesRecord, stocks []domain.ProductStock, report *domain.AnalysisReport) domain.Dashboard {
	dashboard := domain.Dashboard{GeneratedAt: p.now().UTC()}
	if report != nil {
		dashboard.RunID = report.Run.ID.String()
	}

	dashboard.Sales = SalesIndicators(sales)
	dashboard.Trends = TrendIndicators(sales, p.periodDays)
	dashboard.ControlChart = ControlLimits(sales, p.chartDays)

	dashboard.Stock = StockStatuses(stocks, report)
	dashboard.Inventory = InventoryIndicators(dashboard.Stock, report)
	dashboard.Efficiency = EfficiencyIndicators(dashboard.Sales, dashboard.Inventory)
	dashboard.Recommendations = Recommend(dashboard.Sales, dashboard.Inventory, dashboard.Efficiency)

	log.Debug().
		Int("sales_records", len(sales)).
		Int("products_with_stock", len(stocks)).
		Int("recommendations", len(dashboard.Recommendations)).
		Msg("Built insights dashboard")

	return dashboard
}
