package domain

import "time"

type SnapshotType string

const (
	SnapshotHistorical SnapshotType = "Historical"
	SnapshotProjected  SnapshotType = "Projected"
)

// InventorySnapshot is the end-of-day stock of one simulated day.
type InventorySnapshot struct {
	Date              time.Time    `json:"date"`
	StockLevel        float64      `json:"stock_level"`
	Type              SnapshotType `json:"type"`
	Sales             float64      `json:"sales_that_day"`
	Receipts          float64      `json:"receipts_that_day"`
	SimulatedDelivery float64      `json:"simulated_delivery_that_day"`
	ReorderPlaced     bool         `json:"reorder_placed"`
}

// PendingOrder is a simulated order that has not arrived yet.
type PendingOrder struct {
	PlacedDate  time.Time `json:"placed_date"`
	ArrivalDate time.Time `json:"arrival_date"`
	Quantity    float64   `json:"quantity"`
}

type EventType string

const (
	EventReorder  EventType = "reorder"
	EventDelivery EventType = "delivery"
)

// SimulationEvent marks a reorder or a delivery on the projected axis.
type SimulationEvent struct {
	Type     EventType `json:"type"`
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// SimulationInput is everything one product simulation needs.
type SimulationInput struct {
	Product          string         `json:"product" validate:"required"`
	Sales            []SalesRecord  `json:"-"`
	Receipts         []StockReceipt `json:"-"`
	CurrentStock     float64        `json:"current_stock" validate:"gte=0"`
	Today            time.Time      `json:"today" validate:"required"`
	ReorderPoint     float64        `json:"reorder_point" validate:"gte=0"`
	OrderQuantity    float64        `json:"order_quantity" validate:"gte=0"`
	AvgDailyForecast float64        `json:"avg_daily_forecast" validate:"gte=0"`
	Forecast         []float64      `json:"forecast"`
	ForecastStart    time.Time      `json:"forecast_start"`
	LeadTimeDays     int            `json:"lead_time_days" validate:"min=1,max=365"`
	SafetyStockDays  int            `json:"safety_stock_days" validate:"min=0,max=365"`
	HorizonDays      int            `json:"horizon_days" validate:"min=1,max=730"`
}

// SimulationSummary condenses a trace for dashboards.
type SimulationSummary struct {
	CurrentStock        float64    `json:"current_stock"`
	MinProjectedStock   float64    `json:"min_projected_stock"`
	FirstStockoutDate   *time.Time `json:"first_stockout_date,omitempty"`
	DaysOfCover         float64    `json:"days_of_cover"`
	MaxTheoreticalStock float64    `json:"max_theoretical_stock"`
	ReorderCount        int        `json:"reorder_count"`
	DeliveryCount       int        `json:"delivery_count"`
	StockoutDays        int        `json:"stockout_days"`
}

// SimulationTrace is the full day-by-day result for one product.
type SimulationTrace struct {
	Product   string              `json:"product"`
	Today     time.Time           `json:"today"`
	Snapshots []InventorySnapshot `json:"snapshots"`
	Events    []SimulationEvent   `json:"events"`
	Orders    []PendingOrder      `json:"orders"`
	Summary   SimulationSummary   `json:"summary"`
}
