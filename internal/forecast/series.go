package forecast

import (
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
)

type dailyQuantity struct {
	date     time.Time
	quantity float64
}

// PrepareDailySeries resamples the sales records of one product into a
// gap-filled daily series spanning the first to the last sale day.
func PrepareDailySeries(product string, records []domain.SalesRecord) (domain.DailySeries, error) {
	points := make([]dailyQuantity, len(records))
	for i, r := range records {
		points[i] = dailyQuantity{date: r.Date, quantity: r.Quantity}
	}
	return buildSeries(product, points)
}

// PrepareReceiptSeries applies the same resampling to stock receipts.
func PrepareReceiptSeries(product string, receipts []domain.StockReceipt) (domain.DailySeries, error) {
	points := make([]dailyQuantity, len(receipts))
	for i, r := range receipts {
		points[i] = dailyQuantity{date: r.Date, quantity: r.Quantity}
	}
	return buildSeries(product, points)
}

func buildSeries(product string, points []dailyQuantity) (domain.DailySeries, error) {
	if len(points) == 0 {
		return domain.DailySeries{Product: product}, domain.ErrEmptySeries
	}

	start := domain.TruncateDay(points[0].date)
	end := start
	for _, p := range points[1:] {
		d := domain.TruncateDay(p.date)
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
	}

	values := make([]float64, domain.DaysBetween(start, end)+1)
	for _, p := range points {
		// negative quantities are upstream noise, counted as zero
		if p.quantity <= 0 {
			continue
		}
		values[domain.DaysBetween(start, p.date)] += p.quantity
	}

	return domain.DailySeries{Product: product, Start: start, Values: values}, nil
}

// GroupSales splits a mixed slice of sales by product. The returned order is
// the order in which products first appear, so batch output is deterministic.
func GroupSales(records []domain.SalesRecord) ([]string, map[string][]domain.SalesRecord) {
	order := make([]string, 0)
	byProduct := make(map[string][]domain.SalesRecord)
	for _, r := range records {
		if _, ok := byProduct[r.Product]; !ok {
			order = append(order, r.Product)
		}
		byProduct[r.Product] = append(byProduct[r.Product], r)
	}
	return order, byProduct
}

// GroupReceipts splits a mixed slice of receipts by product.
func GroupReceipts(receipts []domain.StockReceipt) map[string][]domain.StockReceipt {
	byProduct := make(map[string][]domain.StockReceipt)
	for _, r := range receipts {
		byProduct[r.Product] = append(byProduct[r.Product], r)
	}
	return byProduct
}
