// backend-go/internal/domain/models.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLeadTimeDays          = 7
	DefaultSafetyStockDays       = 3
	DefaultSeasonalPeriodDays    = 7
	DefaultProjectionHorizonDays = 30
)

// SalesRecord is one row of sales history. Stored history holds at most one
// row per day, product and SourceFile.
type SalesRecord struct {
	Date       time.Time `json:"date" db:"sale_date"`
	Product    string    `json:"product" db:"product"`
	Quantity   float64   `json:"quantity_sold" db:"quantity"`
	SourceFile string    `json:"source_file,omitempty" db:"source_file"`
}

// StockReceipt is one row of goods received into stock.
type StockReceipt struct {
	Date       time.Time `json:"date" db:"receipt_date"`
	Product    string    `json:"product" db:"product"`
	Quantity   float64   `json:"quantity_received" db:"quantity"`
	SourceFile string    `json:"source_file,omitempty" db:"source_file"`
}

// DailySeries is a contiguous per-day quantity series for one product.
// Values[i] belongs to Start + i days.
type DailySeries struct {
	Product string    `json:"product"`
	Start   time.Time `json:"start"`
	Values  []float64 `json:"values"`
}

func (s DailySeries) Len() int { return len(s.Values) }

// DateAt returns the calendar day of index i.
func (s DailySeries) DateAt(i int) time.Time {
	return s.Start.AddDate(0, 0, i)
}

// End returns the last day of the series, or the zero time when empty.
func (s DailySeries) End() time.Time {
	if len(s.Values) == 0 {
		return time.Time{}
	}
	return s.DateAt(len(s.Values) - 1)
}

func (s DailySeries) Total() float64 {
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}

// ValueAt returns the quantity on day d, or 0 when d lies outside the series.
func (s DailySeries) ValueAt(d time.Time) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	idx := DaysBetween(s.Start, d)
	if idx < 0 || idx >= len(s.Values) {
		return 0
	}
	return s.Values[idx]
}

// ForecastResult holds the forecast for the next len(Values) days.
type ForecastResult struct {
	Values []float64   `json:"daily_values"`
	Dates  []time.Time `json:"dates"`
}

// AnalysisParams configures one batch run.
type AnalysisParams struct {
	LeadTimeDays       int `json:"lead_time_days" form:"lead_time_days" validate:"min=1,max=365"`
	SafetyStockDays    int `json:"safety_stock_days" form:"safety_stock_days" validate:"min=0,max=365"`
	SeasonalPeriodDays int `json:"seasonal_period_days" form:"seasonal_period_days" validate:"min=2,max=365"`
}

func DefaultAnalysisParams() AnalysisParams {
	return AnalysisParams{
		LeadTimeDays:       DefaultLeadTimeDays,
		SafetyStockDays:    DefaultSafetyStockDays,
		SeasonalPeriodDays: DefaultSeasonalPeriodDays,
	}
}

// WithDefaults fills zero-valued lead time and seasonal period.
// A zero safety stock is a valid choice and is kept.
func (p AnalysisParams) WithDefaults() AnalysisParams {
	if p.LeadTimeDays == 0 {
		p.LeadTimeDays = DefaultLeadTimeDays
	}
	if p.SeasonalPeriodDays == 0 {
		p.SeasonalPeriodDays = DefaultSeasonalPeriodDays
	}
	return p
}

// MinHistoryDays is the shortest history the forecaster accepts.
func (p AnalysisParams) MinHistoryDays() int {
	return 2 * p.SeasonalPeriodDays
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AnalysisRun is the bookkeeping record of one batch analysis.
type AnalysisRun struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Source             string     `json:"source" db:"source"`
	Status             RunStatus  `json:"status" db:"status"`
	LeadTimeDays       int        `json:"lead_time_days" db:"lead_time_days"`
	SafetyStockDays    int        `json:"safety_stock_days" db:"safety_stock_days"`
	SeasonalPeriodDays int        `json:"seasonal_period_days" db:"seasonal_period_days"`
	ProductCount       int        `json:"product_count" db:"product_count"`
	ErrorCount         int        `json:"error_count" db:"error_count"`
	StartedAt          time.Time  `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
}

// Params returns the parameters the run was executed with.
func (r AnalysisRun) Params() AnalysisParams {
	return AnalysisParams{
		LeadTimeDays:       r.LeadTimeDays,
		SafetyStockDays:    r.SafetyStockDays,
		SeasonalPeriodDays: r.SeasonalPeriodDays,
	}
}

// AnalysisReport is the full output of a batch run.
type AnalysisReport struct {
	Run        AnalysisRun      `json:"run"`
	Metrics    []ProductMetrics `json:"metrics"`
	ABCSummary ABCSummary       `json:"abc_summary"`
}

// Find returns the metrics of product, if present.
func (r *AnalysisReport) Find(product string) (ProductMetrics, bool) {
	if r == nil {
		return ProductMetrics{}, false
	}
	for _, m := range r.Metrics {
		if m.Product == product {
			return m, true
		}
	}
	return ProductMetrics{}, false
}

// UploadedFile represents an uploaded file for processing
type UploadedFile struct {
	Filename string
	Path     string
	Size     int64
}

// ImportResult summarises a file import.
type ImportResult struct {
	Filename    string    `json:"filename"`
	Kind        string    `json:"kind"`
	Rows        int       `json:"rows"`
	Products    int       `json:"products"`
	SkippedRows int       `json:"skipped_rows"`
	ImportedAt  time.Time `json:"imported_at"`
}

// DaysBetween counts calendar days from a to b (negative when b precedes a).
func DaysBetween(a, b time.Time) int {
	a = TruncateDay(a)
	b = TruncateDay(b)
	return int(b.Sub(a).Hours() / 24)
}

// TruncateDay drops the clock part and normalises to UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
