package simulation

import (
	"errors"
	"math"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Simulator reconstructs the stock history of a product from an anchored
// current stock and projects it forward under a single-open-order policy.
type Simulator struct {
	recorder *metrics.Recorder
}

func NewSimulator(recorder *metrics.Recorder) *Simulator {
	return &Simulator{recorder: recorder}
}

// Simulate builds the full trace for one product.
func (s *Simulator) Simulate(in domain.SimulationInput) (*domain.SimulationTrace, error) {
	in = withDefaults(in)
	if err := in.Validate(); err != nil {
		s.recorder.ObserveSimulation("invalid")
		return nil, err
	}
	if len(in.Sales) == 0 && len(in.Receipts) == 0 {
		s.recorder.ObserveSimulation(string(domain.KindNoData))
		return nil, &domain.NoDataError{Product: in.Product}
	}

	today := domain.TruncateDay(in.Today)

	sales, err := forecast.PrepareDailySeries(in.Product, in.Sales)
	if err != nil && !errors.Is(err, domain.ErrEmptySeries) {
		return nil, err
	}
	receipts, err := forecast.PrepareReceiptSeries(in.Product, in.Receipts)
	if err != nil && !errors.Is(err, domain.ErrEmptySeries) {
		return nil, err
	}

	start := axisStart(today, sales, receipts)
	days := domain.DaysBetween(start, today) + 1
	salesByDay := make([]float64, days)
	receiptsByDay := make([]float64, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		salesByDay[i] = sales.ValueAt(d)
		receiptsByDay[i] = receipts.ValueAt(d)
	}

	history := reconstructHistory(start, salesByDay, receiptsByDay, in.CurrentStock)
	if replayed := replayHistory(history); math.Abs(replayed-in.CurrentStock) > 1e-6 {
		// the backward pass clamped a negative stock to zero somewhere
		log.Debug().
			Str("product", in.Product).
			Float64("anchor", in.CurrentStock).
			Float64("replayed", replayed).
			Msg("simulation: history does not balance to the current stock")
	}

	forecastStart := domain.TruncateDay(in.ForecastStart)
	if in.ForecastStart.IsZero() {
		forecastStart = today.AddDate(0, 0, 1)
	}
	projected, events, orders := projectForward(projection{
		start:         today.AddDate(0, 0, 1),
		days:          in.HorizonDays,
		openingStock:  in.CurrentStock,
		forecast:      in.Forecast,
		forecastStart: forecastStart,
		avgDemand:     in.AvgDailyForecast,
		reorderPoint:  in.ReorderPoint,
		orderQuantity: in.OrderQuantity,
		leadTimeDays:  in.LeadTimeDays,
	})

	snapshots := make([]domain.InventorySnapshot, 0, len(history)+len(projected))
	snapshots = append(snapshots, history...)
	snapshots = append(snapshots, projected...)

	s.recorder.ObserveSimulation("ok")

	return &domain.SimulationTrace{
		Product:   in.Product,
		Today:     today,
		Snapshots: snapshots,
		Events:    events,
		Orders:    orders,
		Summary:   summarize(in, projected, events),
	}, nil
}

func withDefaults(in domain.SimulationInput) domain.SimulationInput {
	if in.LeadTimeDays == 0 {
		in.LeadTimeDays = domain.DefaultLeadTimeDays
	}
	if in.HorizonDays == 0 {
		in.HorizonDays = domain.DefaultProjectionHorizonDays
	}
	if minHorizon := in.LeadTimeDays + in.SafetyStockDays; in.HorizonDays < minHorizon {
		in.HorizonDays = minHorizon
	}
	if in.Today.IsZero() {
		in.Today = time.Now()
	}
	if in.AvgDailyForecast == 0 && len(in.Forecast) > 0 {
		var sum float64
		for _, v := range in.Forecast {
			sum += v
		}
		in.AvgDailyForecast = sum / float64(len(in.Forecast))
	}
	return in
}

// axisStart is the earliest day with sales or receipts, capped at today.
func axisStart(today time.Time, series ...domain.DailySeries) time.Time {
	start := today
	for _, s := range series {
		if s.Len() == 0 {
			continue
		}
		if s.Start.Before(start) {
			start = s.Start
		}
	}
	return start
}

func summarize(in domain.SimulationInput, projected []domain.InventorySnapshot, events []domain.SimulationEvent) domain.SimulationSummary {
	summary := domain.SimulationSummary{
		CurrentStock:        in.CurrentStock,
		MinProjectedStock:   in.CurrentStock,
		MaxTheoreticalStock: in.ReorderPoint + in.OrderQuantity,
	}
	if in.AvgDailyForecast > 0 {
		summary.DaysOfCover = math.Round(in.CurrentStock/in.AvgDailyForecast*100) / 100
	}

	for _, snap := range projected {
		if snap.StockLevel < summary.MinProjectedStock {
			summary.MinProjectedStock = snap.StockLevel
		}
		if snap.StockLevel <= 0 {
			summary.StockoutDays++
			if summary.FirstStockoutDate == nil {
				d := snap.Date
				summary.FirstStockoutDate = &d
			}
		}
	}

	for _, e := range events {
		switch e.Type {
		case domain.EventReorder:
			summary.ReorderCount++
		case domain.EventDelivery:
			summary.DeliveryCount++
		}
	}
	return summary
}
