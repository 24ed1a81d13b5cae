package simulation

import (
	"math"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
)

// reconstructHistory walks backward from the anchored stock at the last day
// of the axis, inverting the daily balance: prior = stock + sales - receipts.
func reconstructHistory(start time.Time, sales, receipts []float64, anchor float64) []domain.InventorySnapshot {
	n := len(sales)
	if n == 0 {
		return nil
	}

	stock := make([]float64, n)
	stock[n-1] = math.Max(0, anchor)
	for i := n - 1; i > 0; i-- {
		stock[i-1] = math.Max(0, stock[i]+sales[i]-receipts[i])
	}

	snapshots := make([]domain.InventorySnapshot, n)
	for i := range snapshots {
		snapshots[i] = domain.InventorySnapshot{
			Date:       start.AddDate(0, 0, i),
			StockLevel: stock[i],
			Type:       domain.SnapshotHistorical,
			Sales:      sales[i],
			Receipts:   receipts[i],
		}
	}
	return snapshots
}

type projection struct {
	start         time.Time
	days          int
	openingStock  float64
	forecast      []float64
	forecastStart time.Time
	avgDemand     float64
	reorderPoint  float64
	orderQuantity float64
	leadTimeDays  int
}

// demandAt uses the forecast value dated day when there is one and the
// average otherwise.
func (p projection) demandAt(day time.Time) float64 {
	if i := domain.DaysBetween(p.forecastStart, day); i >= 0 && i < len(p.forecast) {
		return math.Max(0, p.forecast[i])
	}
	return math.Max(0, p.avgDemand)
}

// projectForward simulates the days after today. At most one order is open:
// each day the pending delivery lands first, then demand is consumed, then a
// new order is placed only when none is pending and stock is at or below the
// reorder point.
func projectForward(p projection) ([]domain.InventorySnapshot, []domain.SimulationEvent, []domain.PendingOrder) {
	snapshots := make([]domain.InventorySnapshot, 0, p.days)
	events := make([]domain.SimulationEvent, 0)
	orders := make([]domain.PendingOrder, 0)

	stock := math.Max(0, p.openingStock)
	var pending *domain.PendingOrder

	for offset := 0; offset < p.days; offset++ {
		day := p.start.AddDate(0, 0, offset)
		snap := domain.InventorySnapshot{Date: day, Type: domain.SnapshotProjected}

		if pending != nil && !pending.ArrivalDate.After(day) {
			stock += pending.Quantity
			snap.SimulatedDelivery = pending.Quantity
			events = append(events, domain.SimulationEvent{Type: domain.EventDelivery, Date: day, Quantity: pending.Quantity})
			pending = nil
		}

		demand := p.demandAt(day)
		snap.Sales = demand
		stock = math.Max(0, stock-demand)

		if pending == nil && p.orderQuantity > 0 && stock <= p.reorderPoint {
			order := domain.PendingOrder{
				PlacedDate:  day,
				ArrivalDate: day.AddDate(0, 0, p.leadTimeDays),
				Quantity:    p.orderQuantity,
			}
			pending = &order
			orders = append(orders, order)
			events = append(events, domain.SimulationEvent{Type: domain.EventReorder, Date: day, Quantity: order.Quantity})
			snap.ReorderPlaced = true
		}

		snap.StockLevel = stock
		snapshots = append(snapshots, snap)
	}

	return snapshots, events, orders
}

// replayHistory re-applies the forward balance over historical snapshots and
// returns the stock it arrives at on the last historical day.
func replayHistory(snapshots []domain.InventorySnapshot) float64 {
	var stock float64
	first := true
	for _, snap := range snapshots {
		if snap.Type != domain.SnapshotHistorical {
			continue
		}
		if first {
			stock = snap.StockLevel
			first = false
			continue
		}
		stock = math.Max(0, stock-snap.Sales+snap.Receipts)
	}
	return stock
}
