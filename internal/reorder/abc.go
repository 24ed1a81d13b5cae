package reorder

import (
	"sort"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	thresholdA = decimal.NewFromInt(80)
	thresholdB = decimal.NewFromInt(95)
	hundred    = decimal.NewFromInt(100)
)

// ClassifyABC assigns Pareto classes across the whole batch. Only products
// without an error and with positive volume are ranked; the rest get N/A.
// Equal volumes keep their input order. The input slice is not modified.
func ClassifyABC(metrics []domain.ProductMetrics) []domain.ProductMetrics {
	out := make([]domain.ProductMetrics, len(metrics))
	copy(out, metrics)

	ranked := make([]int, 0, len(out))
	total := decimal.Zero
	for i := range out {
		out[i].ABCClass = domain.ClassNA
		if !out[i].OK() || out[i].TotalVolumeSold <= 0 {
			continue
		}
		ranked = append(ranked, i)
		total = total.Add(decimal.NewFromFloat(out[i].TotalVolumeSold))
	}

	if len(ranked) == 0 {
		return out
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return out[ranked[a]].TotalVolumeSold > out[ranked[b]].TotalVolumeSold
	})

	cumulative := decimal.Zero
	for _, idx := range ranked {
		cumulative = cumulative.Add(decimal.NewFromFloat(out[idx].TotalVolumeSold))
		share := cumulative.Mul(hundred).Div(total)

		switch {
		case share.LessThanOrEqual(thresholdA):
			out[idx].ABCClass = domain.ClassA
		case share.LessThanOrEqual(thresholdB):
			out[idx].ABCClass = domain.ClassB
		default:
			out[idx].ABCClass = domain.ClassC
		}
	}

	return out
}
