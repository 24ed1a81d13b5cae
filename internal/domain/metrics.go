package domain

import (
	"errors"
	"time"
)

// ABCClass is the Pareto category of a product within a batch.
type ABCClass string

const (
	ClassA  ABCClass = "A"
	ClassB  ABCClass = "B"
	ClassC  ABCClass = "C"
	ClassNA ABCClass = "N/A"
)

// ABCSummary counts products per class.
type ABCSummary map[ABCClass]int

// ReorderResult is the successful outcome of the reorder calculation.
type ReorderResult struct {
	ReorderPoint     float64        `json:"reorder_point"`
	OrderQuantity    float64        `json:"order_quantity"`
	AvgDailyForecast float64        `json:"avg_daily_forecast"`
	LeadTimeDemand   float64        `json:"lead_time_demand"`
	SafetyStock      float64        `json:"safety_stock"`
	Forecast         ForecastResult `json:"forecast"`
}

// MetricsError is the failed outcome of the reorder calculation.
type MetricsError struct {
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

// ProductMetrics is the per-product result of a batch run.
// Exactly one of Result and Err is set; use NewOkMetrics and NewErrMetrics.
type ProductMetrics struct {
	Product         string         `json:"product"`
	HistoricalDays  int            `json:"historical_days_count"`
	TotalVolumeSold float64        `json:"total_volume_sold"`
	ABCClass        ABCClass       `json:"abc_class"`
	Result          *ReorderResult `json:"result,omitempty"`
	Err             *MetricsError  `json:"error,omitempty"`
}

func NewOkMetrics(product string, historicalDays int, totalVolume float64, result ReorderResult) ProductMetrics {
	return ProductMetrics{
		Product:         product,
		HistoricalDays:  historicalDays,
		TotalVolumeSold: totalVolume,
		ABCClass:        ClassNA,
		Result:          &result,
	}
}

// NewErrMetrics builds the error variant. A nil err is treated as a fit failure
// so the variant never ends up with neither side set.
func NewErrMetrics(product string, historicalDays int, totalVolume float64, err error) ProductMetrics {
	if err == nil {
		err = &ForecastFitError{Cause: errors.New("unknown failure")}
	}
	return ProductMetrics{
		Product:         product,
		HistoricalDays:  historicalDays,
		TotalVolumeSold: totalVolume,
		ABCClass:        ClassNA,
		Err:             &MetricsError{Kind: KindOf(err), Reason: err.Error()},
	}
}

func (m ProductMetrics) OK() bool { return m.Err == nil && m.Result != nil }

// Error returns the failure reason, or "" for a successful product.
func (m ProductMetrics) Error() string {
	if m.Err == nil {
		return ""
	}
	return m.Err.Reason
}

func (m ProductMetrics) ReorderPoint() float64 {
	if !m.OK() {
		return 0
	}
	return m.Result.ReorderPoint
}

func (m ProductMetrics) OrderQuantity() float64 {
	if !m.OK() {
		return 0
	}
	return m.Result.OrderQuantity
}

func (m ProductMetrics) AvgDailyForecast() float64 {
	if !m.OK() {
		return 0
	}
	return m.Result.AvgDailyForecast
}

func (m ProductMetrics) LeadTimeDemand() float64 {
	if !m.OK() {
		return 0
	}
	return m.Result.LeadTimeDemand
}

func (m ProductMetrics) SafetyStock() float64 {
	if !m.OK() {
		return 0
	}
	return m.Result.SafetyStock
}

// ForecastValues returns the daily forecast, or nil for a failed product.
func (m ProductMetrics) ForecastValues() []float64 {
	if !m.OK() {
		return nil
	}
	return m.Result.Forecast.Values
}

// ForecastStart is the first forecast day, or the zero time when there is none.
func (m ProductMetrics) ForecastStart() time.Time {
	if !m.OK() || len(m.Result.Forecast.Dates) == 0 {
		return time.Time{}
	}
	return m.Result.Forecast.Dates[0]
}

// ProductMetricsRow is the flat persisted and exported shape of ProductMetrics.
type ProductMetricsRow struct {
	RunID            string   `json:"run_id" db:"run_id"`
	Product          string   `json:"product" db:"product"`
	ReorderPoint     float64  `json:"reorder_point" db:"reorder_point"`
	OrderQuantity    float64  `json:"order_quantity" db:"order_quantity"`
	AvgDailyForecast float64  `json:"avg_daily_forecast" db:"avg_daily_forecast"`
	LeadTimeDemand   float64  `json:"lead_time_demand" db:"lead_time_demand"`
	SafetyStock      float64  `json:"safety_stock" db:"safety_stock"`
	HistoricalDays   int      `json:"historical_days_count" db:"historical_days"`
	TotalVolumeSold  float64  `json:"total_volume_sold" db:"total_volume_sold"`
	ABCClass         ABCClass `json:"abc_class" db:"abc_class"`
	ErrorKind        string   `json:"error_kind,omitempty" db:"error_kind"`
	Error            string   `json:"error,omitempty" db:"error"`

	// ForecastValues is stored by the repository as an array column.
	ForecastValues []float64  `json:"forecast_values,omitempty" db:"-"`
	ForecastStart  *time.Time `json:"forecast_start,omitempty" db:"forecast_start"`
}

func (m ProductMetrics) Row(runID string) ProductMetricsRow {
	row := ProductMetricsRow{
		RunID:            runID,
		Product:          m.Product,
		ReorderPoint:     m.ReorderPoint(),
		OrderQuantity:    m.OrderQuantity(),
		AvgDailyForecast: m.AvgDailyForecast(),
		LeadTimeDemand:   m.LeadTimeDemand(),
		SafetyStock:      m.SafetyStock(),
		HistoricalDays:   m.HistoricalDays,
		TotalVolumeSold:  m.TotalVolumeSold,
		ABCClass:         m.ABCClass,
	}
	if m.Err != nil {
		row.ErrorKind = string(m.Err.Kind)
		row.Error = m.Err.Reason
	}
	if values := m.ForecastValues(); len(values) > 0 {
		row.ForecastValues = append([]float64(nil), values...)
		if start := m.ForecastStart(); !start.IsZero() {
			row.ForecastStart = &start
		}
	}
	return row
}

// Metrics rebuilds the variant from a persisted row. Forecast dates are
// consecutive days from ForecastStart.
func (r ProductMetricsRow) Metrics() ProductMetrics {
	m := ProductMetrics{
		Product:         r.Product,
		HistoricalDays:  r.HistoricalDays,
		TotalVolumeSold: r.TotalVolumeSold,
		ABCClass:        r.ABCClass,
	}
	if r.ErrorKind != "" || r.Error != "" {
		m.Err = &MetricsError{Kind: ErrorKind(r.ErrorKind), Reason: r.Error}
		return m
	}
	m.Result = &ReorderResult{
		ReorderPoint:     r.ReorderPoint,
		OrderQuantity:    r.OrderQuantity,
		AvgDailyForecast: r.AvgDailyForecast,
		LeadTimeDemand:   r.LeadTimeDemand,
		SafetyStock:      r.SafetyStock,
	}
	if len(r.ForecastValues) > 0 {
		m.Result.Forecast.Values = append([]float64(nil), r.ForecastValues...)
		if r.ForecastStart != nil {
			start := TruncateDay(*r.ForecastStart)
			m.Result.Forecast.Dates = make([]time.Time, len(r.ForecastValues))
			for i := range m.Result.Forecast.Dates {
				m.Result.Forecast.Dates[i] = start.AddDate(0, 0, i)
			}
		}
	}
	return m
}

// SummarizeABC counts products per class, N/A included.
func SummarizeABC(metrics []ProductMetrics) ABCSummary {
	summary := ABCSummary{
		ClassA:  0,
		ClassB:  0,
		ClassC:  0,
		ClassNA: 0,
	}
	for _, m := range metrics {
		class := m.ABCClass
		if class == "" {
			class = ClassNA
		}
		summary[class]++
	}
	return summary
}
