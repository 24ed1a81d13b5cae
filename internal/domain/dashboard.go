package domain

import "time"

// SalesIndicators summarises the sales history across all products.
type SalesIndicators struct {
	TotalSales             float64            `json:"total_sales"`
	AnalysisDays           int                `json:"analysis_days"`
	AvgDailySales          float64            `json:"avg_daily_sales"`
	AvgWeeklySales         float64            `json:"avg_weekly_sales"`
	AvgMonthlySales        float64            `json:"avg_monthly_sales"`
	GrowthPercent          float64            `json:"growth_percent"` // second half of the window vs the first half
	TopProduct             string             `json:"top_product"`
	ConcentrationPercent   float64            `json:"concentration_percent"` // share of the top 20% of products
	MeanByWeekday          map[string]float64 `json:"mean_by_weekday"`
	StdDevDailySales       float64            `json:"std_dev_daily_sales"`
	CoefficientOfVariation float64            `json:"coefficient_of_variation"`
}

// ProductStock is the on-hand quantity of one product.
type ProductStock struct {
	Product      string  `json:"product" form:"product" db:"product"`
	CurrentStock float64 `json:"current_stock" form:"current_stock" db:"current_stock"`
}

// ProductStockStatus is a product's stock level compared against its reorder point.
type ProductStockStatus struct {
	Product      string      `json:"product"`
	CurrentStock float64     `json:"current_stock"`
	ReorderPoint float64     `json:"reorder_point"`
	Status       StockStatus `json:"status"`
	Shortage     bool        `json:"shortage"`
}

type InventoryIndicators struct {
	TotalStock         float64             `json:"total_stock"`
	TotalProducts      int                 `json:"total_products"`
	ProductsInStock    int                 `json:"products_in_stock"`
	ProductsOutOfStock int                 `json:"products_out_of_stock"`
	OutOfStockPercent  float64             `json:"out_of_stock_percent"`
	AvgStockPerProduct float64             `json:"avg_stock_per_product"`
	StatusCounts       map[StockStatus]int `json:"status_counts"`
	ABC                ABCSummary          `json:"abc"`
}

// EfficiencyIndicators relate stock to the demand it serves.
type EfficiencyIndicators struct {
	InventoryTurnover    float64 `json:"inventory_turnover"`
	DaysOfInventory      float64 `json:"days_of_inventory"`
	FillRatePercent      float64 `json:"fill_rate_percent"`
	ServiceLevelPercent  float64 `json:"service_level_percent"`
	ForecastAccuracyHint float64 `json:"forecast_accuracy_hint"` // 100 - CV, floored at 0
}

type TrendIndicators struct {
	PeriodDays     int                `json:"period_days"`
	RecentSales    float64            `json:"recent_sales"`
	PreviousSales  float64            `json:"previous_sales"`
	TrendPercent   float64            `json:"trend_percent"`
	AbsoluteChange float64            `json:"absolute_change"`
	ByProduct      map[string]float64 `json:"by_product"`
}

// ControlChart holds daily totals with their 3-sigma limits.
type ControlChart struct {
	Dates []time.Time `json:"dates"`
	Sales []float64   `json:"sales"`
	Mean  float64     `json:"mean"`
	UCL   float64     `json:"ucl"`
	LCL   float64     `json:"lcl"`
}

// Dashboard aggregates all insight data
type Dashboard struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	RunID           string               `json:"run_id,omitempty"`
	Sales           SalesIndicators      `json:"sales"`
	Inventory       InventoryIndicators  `json:"inventory"`
	Efficiency      EfficiencyIndicators `json:"efficiency"`
	Trends          TrendIndicators      `json:"trends"`
	ControlChart    ControlChart         `json:"control_chart"`
	Stock           []ProductStockStatus `json:"stock"`
	Recommendations []Recommendation     `json:"recommendations"`
}

type RecommendationArea string

const (
	AreaSales      RecommendationArea = "sales"
	AreaVolatility RecommendationArea = "volatility"
	AreaPortfolio  RecommendationArea = "concentration"
	AreaStockout   RecommendationArea = "stockout"
	AreaCritical   RecommendationArea = "critical"
	AreaExcess     RecommendationArea = "excess"
	AreaTurnover   RecommendationArea = "turnover"
	AreaCoverage   RecommendationArea = "days_of_inventory"
	AreaFillRate   RecommendationArea = "fill_rate"
	AreaForecast   RecommendationArea = "forecast"
	AreaAllGood    RecommendationArea = "ok"
)

type Recommendation struct {
	Area    RecommendationArea `json:"area"`
	Message string             `json:"message"`
}
