package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(values ...float64) domain.DailySeries {
	return domain.DailySeries{Product: "sku", Start: day0, Values: values}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPrepareDailySeries(t *testing.T) {
	records := []domain.SalesRecord{
		{Date: day0.AddDate(0, 0, 4), Product: "sku", Quantity: 2},
		{Date: day0.Add(9 * time.Hour), Product: "sku", Quantity: 3},
		{Date: day0.Add(17 * time.Hour), Product: "sku", Quantity: 1},
		{Date: day0.AddDate(0, 0, 2), Product: "sku", Quantity: -5},
	}

	series, err := PrepareDailySeries("sku", records)
	require.NoError(t, err)

	assert.Equal(t, "sku", series.Product)
	assert.Equal(t, day0, series.Start)
	assert.Equal(t, []float64{4, 0, 0, 0, 2}, series.Values)
}

func TestPrepareDailySeriesEmpty(t *testing.T) {
	_, err := PrepareDailySeries("sku", nil)
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	_, err = PrepareReceiptSeries("sku", []domain.StockReceipt{})
	assert.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestPrepareReceiptSeries(t *testing.T) {
	receipts := []domain.StockReceipt{
		{Date: day0.AddDate(0, 0, 1), Product: "sku", Quantity: 50},
		{Date: day0.AddDate(0, 0, 1), Product: "sku", Quantity: 25},
	}
	series, err := PrepareReceiptSeries("sku", receipts)
	require.NoError(t, err)
	assert.Equal(t, []float64{75}, series.Values)
	assert.Equal(t, day0.AddDate(0, 0, 1), series.Start)
}

func TestGroupSalesKeepsFirstSeenOrder(t *testing.T) {
	records := []domain.SalesRecord{
		{Product: "b", Quantity: 1},
		{Product: "a", Quantity: 1},
		{Product: "b", Quantity: 2},
		{Product: "c", Quantity: 1},
	}
	order, byProduct := GroupSales(records)
	assert.Equal(t, []string{"b", "a", "c"}, order)
	assert.Len(t, byProduct["b"], 2)

	receipts := GroupReceipts([]domain.StockReceipt{{Product: "a"}, {Product: "a"}})
	assert.Len(t, receipts["a"], 2)
}

func TestForecasterInsufficientHistory(t *testing.T) {
	f := NewForecaster(time.Second)

	_, err := f.Forecast(context.Background(), dailySeries(repeat(5, 13)...), 7, 7)

	var insufficient *domain.InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 13, insufficient.Days)
	assert.Equal(t, 14, insufficient.Required)
}

func TestForecasterBoundaryHistoryIsAccepted(t *testing.T) {
	f := NewForecaster(5 * time.Second)
	values := []float64{3, 5, 4, 6, 8, 9, 2, 4, 5, 5, 7, 9, 10, 3}

	res, err := f.Forecast(context.Background(), dailySeries(values...), 7, 7)
	require.NoError(t, err)

	require.Len(t, res.Values, 7)
	require.Len(t, res.Dates, 7)
	assert.Equal(t, day0.AddDate(0, 0, 14), res.Dates[0])
	assert.Equal(t, day0.AddDate(0, 0, 20), res.Dates[6])
	for _, v := range res.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.False(t, math.IsNaN(v))
	}
}

func TestForecasterFlatSeries(t *testing.T) {
	f := NewForecaster(5 * time.Second)

	res, err := f.Forecast(context.Background(), dailySeries(repeat(10, 28)...), 7, 5)
	require.NoError(t, err)

	require.Len(t, res.Values, 5)
	for _, v := range res.Values {
		assert.InDelta(t, 10, v, 1e-6)
	}
}

func TestForecasterClipsNegativeForecasts(t *testing.T) {
	values := make([]float64, 28)
	for i := range values {
		values[i] = math.Max(0, 70-2.5*float64(i))
	}

	res, err := NewForecaster(5*time.Second).Forecast(context.Background(), dailySeries(values...), 7, 14)
	require.NoError(t, err)
	for _, v := range res.Values {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestForecasterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewForecaster(0).Forecast(ctx, dailySeries(repeat(4, 21)...), 7, 7)

	var fitErr *domain.ForecastFitError
	require.ErrorAs(t, err, &fitErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestForecasterNonFiniteInput(t *testing.T) {
	values := repeat(4, 14)
	values[3] = math.Inf(1)

	_, err := NewForecaster(0).Forecast(context.Background(), dailySeries(values...), 7, 7)
	assert.Equal(t, domain.KindForecastFit, domain.KindOf(err))
}

func TestInitialState(t *testing.T) {
	y := []float64{1, 2, 3, 1, 2, 3, 4, 5, 6, 4, 5, 6}
	level, trend, season := initialState(y, 6)

	assert.InDelta(t, 2.0, level, 1e-12)
	assert.InDelta(t, 0.5, trend, 1e-12)
	assert.InDeltaSlice(t, []float64{-1, 0, 1, -1, 0, 1}, season, 1e-12)
}

func TestFitHoltWintersSeasonalPattern(t *testing.T) {
	pattern := []float64{10, 12, 14, 16, 30, 40, 8}
	y := make([]float64, 0, 42)
	for i := 0; i < 6; i++ {
		y = append(y, pattern...)
	}

	model, err := FitHoltWinters(context.Background(), y, 7)
	require.NoError(t, err)

	assert.Greater(t, model.Alpha, 0.0)
	assert.Less(t, model.Alpha, 1.0)
	assert.Greater(t, model.Gamma, 0.0)
	assert.Less(t, model.Gamma, 1.0)

	fc := model.Forecast(7)
	for i, want := range pattern {
		assert.InDelta(t, want, fc[i], 1.0, "day %d", i)
	}
}

func TestFitHoltWintersRejectsShortSeries(t *testing.T) {
	_, err := FitHoltWinters(context.Background(), repeat(1, 5), 7)
	assert.Error(t, err)

	_, err = FitHoltWinters(context.Background(), repeat(1, 20), 1)
	assert.Error(t, err)
}
