package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTrendPeriodDays  = 30
	DefaultControlChartDays = 30
	topProductShare         = 0.2
)

type dailyTotal struct {
	date  time.Time
	total float64
}

// dailyTotals sums quantities per calendar day, only for days that appear in
// the records, ordered by date.
func dailyTotals(records []domain.SalesRecord) []dailyTotal {
	byDay := make(map[time.Time]float64)
	for _, r := range records {
		byDay[domain.TruncateDay(r.Date)] += quantity(r.Quantity)
	}

	out := make([]dailyTotal, 0, len(byDay))
	for d, v := range byDay {
		out = append(out, dailyTotal{date: d, total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

func quantity(q float64) float64 {
	if q < 0 || math.IsNaN(q) {
		return 0
	}
	return q
}

func dateRange(records []domain.SalesRecord) (first, last time.Time) {
	for i, r := range records {
		d := domain.TruncateDay(r.Date)
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	return first, last
}

type productTotal struct {
	product string
	total   float64
}

// productTotals returns per-product volume, largest first, ties by name.
func productTotals(records []domain.SalesRecord) []productTotal {
	byProduct := make(map[string]float64)
	for _, r := range records {
		byProduct[r.Product] += quantity(r.Quantity)
	}

	out := make([]productTotal, 0, len(byProduct))
	for p, v := range byProduct {
		out = append(out, productTotal{product: p, total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].total != out[j].total {
			return out[i].total > out[j].total
		}
		return out[i].product < out[j].product
	})
	return out
}

// sampleStdDev is the n-1 standard deviation, 0 below two points.
func sampleStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

// SalesIndicators computes the headline sales KPIs over the whole history.
func SalesIndicators(records []domain.SalesRecord) domain.SalesIndicators {
	out := domain.SalesIndicators{MeanByWeekday: map[string]float64{}}
	if len(records) == 0 {
		return out
	}

	days := dailyTotals(records)
	totals := make([]float64, len(days))
	for i, d := range days {
		totals[i] = d.total
	}

	first, last := dateRange(records)
	out.TotalSales = floats.Sum(totals)
	out.AnalysisDays = domain.DaysBetween(first, last) + 1
	out.AvgDailySales = out.TotalSales / float64(out.AnalysisDays)
	out.AvgWeeklySales = out.AvgDailySales * 7
	out.AvgMonthlySales = out.AvgDailySales * 30

	mid := first.AddDate(0, 0, out.AnalysisDays/2)
	var firstHalf, secondHalf float64
	for _, d := range days {
		if d.date.Before(mid) {
			firstHalf += d.total
		} else {
			secondHalf += d.total
		}
	}
	if firstHalf > 0 {
		out.GrowthPercent = (secondHalf - firstHalf) / firstHalf * 100
	}

	products := productTotals(records)
	out.TopProduct = products[0].product
	top := max(1, int(float64(len(products))*topProductShare))
	var topVolume float64
	for _, p := range products[:top] {
		topVolume += p.total
	}
	if out.TotalSales > 0 {
		out.ConcentrationPercent = topVolume / out.TotalSales * 100
	}

	byWeekday := make(map[time.Weekday][]float64)
	for _, d := range days {
		byWeekday[d.date.Weekday()] = append(byWeekday[d.date.Weekday()], d.total)
	}
	for wd, values := range byWeekday {
		out.MeanByWeekday[wd.String()] = stat.Mean(values, nil)
	}

	out.StdDevDailySales = sampleStdDev(totals)
	if out.AvgDailySales > 0 {
		out.CoefficientOfVariation = out.StdDevDailySales / out.AvgDailySales * 100
	}
	return out
}

// TrendIndicators compares the last periodDays of sales against the period
// before it, overall and per product.
func TrendIndicators(records []domain.SalesRecord, periodDays int) domain.TrendIndicators {
	if periodDays <= 0 {
		periodDays = DefaultTrendPeriodDays
	}
	out := domain.TrendIndicators{PeriodDays: periodDays, ByProduct: map[string]float64{}}
	if len(records) == 0 {
		return out
	}

	_, last := dateRange(records)
	recentStart := last.AddDate(0, 0, -periodDays)
	previousStart := last.AddDate(0, 0, -2*periodDays)
	previousEnd := last.AddDate(0, 0, -(periodDays + 1))

	recent := make(map[string]float64)
	previous := make(map[string]float64)
	for _, r := range records {
		d := domain.TruncateDay(r.Date)
		q := quantity(r.Quantity)
		switch {
		case !d.Before(recentStart):
			recent[r.Product] += q
			out.RecentSales += q
		case !d.Before(previousStart) && !d.After(previousEnd):
			previous[r.Product] += q
			out.PreviousSales += q
		}
	}

	out.TrendPercent = percentChange(out.RecentSales, out.PreviousSales)
	out.AbsoluteChange = out.RecentSales - out.PreviousSales
	for product, v := range recent {
		out.ByProduct[product] = percentChange(v, previous[product])
	}
	return out
}

func percentChange(recent, previous float64) float64 {
	if previous > 0 {
		return (recent - previous) / previous * 100
	}
	if recent > 0 {
		return 100
	}
	return 0
}

// ControlLimits builds a 3-sigma control chart over the daily totals of the
// last windowDays. The lower limit never goes below zero.
func ControlLimits(records []domain.SalesRecord, windowDays int) domain.ControlChart {
	if windowDays <= 0 {
		windowDays = DefaultControlChartDays
	}
	var out domain.ControlChart
	if len(records) == 0 {
		return out
	}

	_, last := dateRange(records)
	from := last.AddDate(0, 0, -windowDays)

	for _, d := range dailyTotals(records) {
		if d.date.Before(from) {
			continue
		}
		out.Dates = append(out.Dates, d.date)
		out.Sales = append(out.Sales, d.total)
	}

	out.Mean = stat.Mean(out.Sales, nil)
	sigma := sampleStdDev(out.Sales)
	out.UCL = out.Mean + 3*sigma
	out.LCL = math.Max(out.Mean-3*sigma, 0)
	return out
}
