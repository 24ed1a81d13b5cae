package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySeries     = errors.New("empty series")
	ErrInvalidParams   = errors.New("invalid analysis parameters")
	ErrProductNotFound = errors.New("product not found")
	ErrNoAnalysis      = errors.New("no analysis run available")
)

// ErrorKind tags a per-product failure.
type ErrorKind string

const (
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindForecastFit         ErrorKind = "forecast_fit"
	KindNoData              ErrorKind = "no_data"
)

// InsufficientHistoryError means the series is shorter than two seasonal cycles.
type InsufficientHistoryError struct {
	Days     int
	Required int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("Insufficient data (minimum %d days, got %d)", e.Required, e.Days)
}

// ForecastFitError wraps a numerical or cancellation failure of the model fit.
type ForecastFitError struct {
	Cause error
}

func (e *ForecastFitError) Error() string {
	if e.Cause == nil {
		return "forecast fit failed"
	}
	return "forecast fit failed: " + e.Cause.Error()
}

func (e *ForecastFitError) Unwrap() error { return e.Cause }

// NoDataError means a product has neither sales nor receipts to simulate from.
type NoDataError struct {
	Product string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no sales or receipt history for product %q", e.Product)
}

// KindOf classifies err into the per-product taxonomy. Unknown errors count as fit failures.
func KindOf(err error) ErrorKind {
	var insufficient *InsufficientHistoryError
	var noData *NoDataError
	switch {
	case errors.As(err, &insufficient):
		return KindInsufficientHistory
	case errors.As(err, &noData):
		return KindNoData
	default:
		return KindForecastFit
	}
}
