package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
)

// Forecaster produces the lead-time demand forecast of one product.
type Forecaster struct {
	// FitTimeout bounds a single model fit. Zero means only the caller's context applies.
	FitTimeout time.Duration
}

func NewForecaster(fitTimeout time.Duration) *Forecaster {
	return &Forecaster{FitTimeout: fitTimeout}
}

// Forecast fits the seasonal model to series and forecasts leadTimeDays days
// after its last date. Short histories return *domain.InsufficientHistoryError
// without touching the model; every fit failure, including a cancelled
// context or a panic inside the optimiser, returns *domain.ForecastFitError.
func (f *Forecaster) Forecast(ctx context.Context, series domain.DailySeries, seasonalPeriod, leadTimeDays int) (result domain.ForecastResult, err error) {
	required := 2 * seasonalPeriod
	if series.Len() < required {
		return domain.ForecastResult{}, &domain.InsufficientHistoryError{Days: series.Len(), Required: required}
	}
	if leadTimeDays < 1 {
		return domain.ForecastResult{}, &domain.ForecastFitError{Cause: fmt.Errorf("lead time must be positive, got %d", leadTimeDays)}
	}

	if f != nil && f.FitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.FitTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = domain.ForecastResult{}
			err = &domain.ForecastFitError{Cause: fmt.Errorf("panic during fit: %v", r)}
		}
	}()

	model, fitErr := FitHoltWinters(ctx, series.Values, seasonalPeriod)
	if fitErr != nil {
		return domain.ForecastResult{}, &domain.ForecastFitError{Cause: fitErr}
	}

	values := model.Forecast(leadTimeDays)
	if !allFinite(values) {
		return domain.ForecastResult{}, &domain.ForecastFitError{Cause: errNonFinite}
	}

	last := series.End()
	dates := make([]time.Time, leadTimeDays)
	for h := range dates {
		dates[h] = last.AddDate(0, 0, h+1)
	}

	return domain.ForecastResult{Values: values, Dates: dates}, nil
}
