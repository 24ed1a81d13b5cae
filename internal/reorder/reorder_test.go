package reorder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func okMetrics(product string, volume float64) domain.ProductMetrics {
	return domain.NewOkMetrics(product, 30, volume, domain.ReorderResult{ReorderPoint: 1})
}

func TestCalculatorFormulas(t *testing.T) {
	calc := NewCalculator(domain.DefaultAnalysisParams())
	series := domain.DailySeries{Product: "sku", Start: day0, Values: flat(12, 21)}
	fc := domain.ForecastResult{Values: flat(10, 7)}

	m := calc.Calculate(series, fc)

	require.True(t, m.OK())
	assert.Equal(t, 70.0, m.LeadTimeDemand())
	assert.Equal(t, 10.0, m.AvgDailyForecast())
	assert.Equal(t, 30.0, m.SafetyStock())
	assert.Equal(t, 100.0, m.ReorderPoint())
	assert.Equal(t, 35.0, m.OrderQuantity())
	assert.Equal(t, 252.0, m.TotalVolumeSold)
	assert.Equal(t, 21, m.HistoricalDays)
	assert.Equal(t, domain.ClassNA, m.ABCClass)
}

func TestCalculatorRoundsToTwoDecimals(t *testing.T) {
	calc := NewCalculator(domain.AnalysisParams{LeadTimeDays: 3, SafetyStockDays: 1, SeasonalPeriodDays: 7})
	series := domain.DailySeries{Product: "sku", Start: day0, Values: []float64{1.111, 2.222}}
	fc := domain.ForecastResult{Values: []float64{1, 1, 1.25}}

	m := calc.Calculate(series, fc)

	assert.Equal(t, 3.25, m.LeadTimeDemand())
	assert.Equal(t, 1.08, m.AvgDailyForecast())
	assert.Equal(t, 1.08, m.SafetyStock())
	assert.Equal(t, 4.33, m.ReorderPoint())
	assert.Equal(t, 3.79, m.OrderQuantity())
	assert.Equal(t, 3.33, m.TotalVolumeSold)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.35, round2(2.345))
	assert.Equal(t, -2.35, round2(-2.345))
	assert.Equal(t, 0.0, round2(0.004))
}

func TestCalculatorFailedKeepsVolume(t *testing.T) {
	calc := NewCalculator(domain.DefaultAnalysisParams())
	series := domain.DailySeries{Product: "sku", Start: day0, Values: flat(5, 13)}

	m := calc.Failed(series, &domain.InsufficientHistoryError{Days: 13, Required: 14})

	assert.False(t, m.OK())
	assert.True(t, strings.HasPrefix(m.Error(), "Insufficient data"))
	assert.Zero(t, m.ReorderPoint())
	assert.Zero(t, m.OrderQuantity())
	assert.Zero(t, m.AvgDailyForecast())
	assert.Equal(t, 65.0, m.TotalVolumeSold)
	assert.Equal(t, 13, m.HistoricalDays)
}

func TestCalculatorIsIdempotent(t *testing.T) {
	calc := NewCalculator(domain.DefaultAnalysisParams())
	series := domain.DailySeries{Product: "sku", Start: day0, Values: []float64{1, 2, 3, 4, 5, 6, 7}}
	fc := domain.ForecastResult{Values: []float64{1.5, 2.25, 3, 0, 0, 1, 2}}

	assert.Equal(t, calc.Calculate(series, fc), calc.Calculate(series, fc))
}

func TestClassifyABC(t *testing.T) {
	tests := []struct {
		name    string
		metrics []domain.ProductMetrics
		want    []domain.ABCClass
	}{
		{
			name:    "pareto split",
			metrics: []domain.ProductMetrics{okMetrics("a", 800), okMetrics("b", 150), okMetrics("c", 50)},
			want:    []domain.ABCClass{domain.ClassA, domain.ClassB, domain.ClassC},
		},
		{
			name:    "input order does not matter",
			metrics: []domain.ProductMetrics{okMetrics("c", 50), okMetrics("a", 800), okMetrics("b", 150)},
			want:    []domain.ABCClass{domain.ClassC, domain.ClassA, domain.ClassB},
		},
		{
			name: "errored and zero volume are excluded",
			metrics: []domain.ProductMetrics{
				okMetrics("a", 800),
				domain.NewErrMetrics("x", 3, 5000, &domain.InsufficientHistoryError{Days: 3, Required: 14}),
				okMetrics("zero", 0),
				okMetrics("b", 150),
				okMetrics("c", 50),
			},
			want: []domain.ABCClass{domain.ClassA, domain.ClassNA, domain.ClassNA, domain.ClassB, domain.ClassC},
		},
		{
			name:    "ties keep input order",
			metrics: []domain.ProductMetrics{okMetrics("first", 50), okMetrics("second", 50)},
			want:    []domain.ABCClass{domain.ClassA, domain.ClassC},
		},
		{
			name:    "single product is C",
			metrics: []domain.ProductMetrics{okMetrics("only", 10)},
			want:    []domain.ABCClass{domain.ClassC},
		},
		{
			name:    "empty batch",
			metrics: nil,
			want:    []domain.ABCClass{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyABC(tt.metrics)
			classes := make([]domain.ABCClass, len(got))
			for i, m := range got {
				classes[i] = m.ABCClass
			}
			assert.Equal(t, tt.want, classes)
		})
	}
}

func TestClassifyABCDoesNotMutateInput(t *testing.T) {
	in := []domain.ProductMetrics{okMetrics("a", 800), okMetrics("b", 200)}
	_ = ClassifyABC(in)
	assert.Equal(t, domain.ClassNA, in[0].ABCClass)
	assert.Equal(t, domain.ClassNA, in[1].ABCClass)
}

func TestClassifyABCThresholdsAreMonotonic(t *testing.T) {
	volumes := []float64{500, 120, 90, 80, 70, 60, 40, 20, 10, 5, 3, 2}
	in := make([]domain.ProductMetrics, len(volumes))
	var total float64
	for i, v := range volumes {
		in[i] = okMetrics(string(rune('a'+i)), v)
		total += v
	}

	got := ClassifyABC(in)

	var cumulative float64
	for _, m := range got {
		cumulative += m.TotalVolumeSold
		share := cumulative * 100 / total
		if share <= 80 {
			assert.Equal(t, domain.ClassA, m.ABCClass, m.Product)
		} else if share <= 95 {
			assert.Equal(t, domain.ClassB, m.ABCClass, m.Product)
		} else {
			assert.Equal(t, domain.ClassC, m.ABCClass, m.Product)
		}
	}
}

func TestSummarizeABC(t *testing.T) {
	in := ClassifyABC([]domain.ProductMetrics{
		okMetrics("a", 800), okMetrics("b", 150), okMetrics("c", 50),
		domain.NewErrMetrics("x", 1, 1, errors.New("nope")),
	})
	summary := domain.SummarizeABC(in)
	assert.Equal(t, 1, summary[domain.ClassA])
	assert.Equal(t, 1, summary[domain.ClassB])
	assert.Equal(t, 1, summary[domain.ClassC])
	assert.Equal(t, 1, summary[domain.ClassNA])
}

// spanRecords builds a history of `days` days whose whole volume sits on the first day.
func spanRecords(product string, volume float64, days int) []domain.SalesRecord {
	return []domain.SalesRecord{
		{Date: day0, Product: product, Quantity: volume},
		{Date: day0.AddDate(0, 0, days-1), Product: product, Quantity: 0},
	}
}

func TestAnalyzerBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	analyzer := NewAnalyzer(forecast.NewForecaster(5*time.Second), 2, metrics.New(reg))

	var sales []domain.SalesRecord
	sales = append(sales, spanRecords("short", 5000, 13)...)
	sales = append(sales, spanRecords("a", 800, 14)...)
	sales = append(sales, spanRecords("b", 150, 21)...)
	sales = append(sales, spanRecords("c", 50, 28)...)

	report, err := analyzer.Analyze(context.Background(), sales, domain.DefaultAnalysisParams())
	require.NoError(t, err)

	require.Len(t, report.Metrics, 4)
	assert.Equal(t, domain.RunStatusCompleted, report.Run.Status)
	assert.Equal(t, 4, report.Run.ProductCount)
	assert.Equal(t, 1, report.Run.ErrorCount)
	assert.NotNil(t, report.Run.CompletedAt)

	short := report.Metrics[0]
	assert.Equal(t, "short", short.Product)
	assert.False(t, short.OK())
	assert.Equal(t, domain.KindInsufficientHistory, short.Err.Kind)
	assert.Zero(t, short.ReorderPoint())
	assert.Equal(t, 5000.0, short.TotalVolumeSold)
	assert.Equal(t, domain.ClassNA, short.ABCClass)

	want := map[string]domain.ABCClass{"a": domain.ClassA, "b": domain.ClassB, "c": domain.ClassC}
	for _, m := range report.Metrics[1:] {
		require.True(t, m.OK(), m.Error())
		assert.Equal(t, want[m.Product], m.ABCClass, m.Product)
		assert.GreaterOrEqual(t, m.ReorderPoint(), 0.0)
		assert.GreaterOrEqual(t, m.OrderQuantity(), 0.0)
		assert.GreaterOrEqual(t, m.AvgDailyForecast(), 0.0)
		assert.Len(t, m.ForecastValues(), domain.DefaultLeadTimeDays)
	}

	assert.Equal(t, 1, report.ABCSummary[domain.ClassNA])
	series, err := testutil.GatherAndCount(reg, "stockzero_products_analyzed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestAnalyzerRejectsInvalidParams(t *testing.T) {
	analyzer := NewAnalyzer(nil, 1, nil)
	_, err := analyzer.Analyze(context.Background(), nil, domain.AnalysisParams{LeadTimeDays: 7, SeasonalPeriodDays: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestAnalyzerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	analyzer := NewAnalyzer(nil, 1, nil)
	_, err := analyzer.Analyze(ctx, spanRecords("a", 10, 20), domain.DefaultAnalysisParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzerEmptyBatch(t *testing.T) {
	report, err := NewAnalyzer(nil, 4, nil).Analyze(context.Background(), nil, domain.AnalysisParams{})
	require.NoError(t, err)
	assert.Empty(t, report.Metrics)
	assert.Equal(t, domain.DefaultLeadTimeDays, report.Run.LeadTimeDays)
}

func TestAnalyzeProduct(t *testing.T) {
	analyzer := NewAnalyzer(forecast.NewForecaster(5*time.Second), 1, nil)
	m, err := analyzer.AnalyzeProduct(context.Background(), "a", spanRecords("a", 70, 14), domain.DefaultAnalysisParams())
	require.NoError(t, err)
	assert.True(t, m.OK())
	assert.Equal(t, domain.ClassNA, m.ABCClass)
	assert.Equal(t, 14, m.HistoricalDays)
}
