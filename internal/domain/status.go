package domain

import "strings"

// StockStatus buckets a product by how close its stock is to the reorder point.
type StockStatus string

const (
	StockCritical StockStatus = "critical"
	StockWarning  StockStatus = "warning"
	StockOptimal  StockStatus = "optimal"
)

var stockStatusLabels = map[StockStatus]string{
	StockCritical: "Critical",
	StockWarning:  "Warning",
	StockOptimal:  "Optimal",
}

// Label returns a human-readable label for a stock status.
func (s StockStatus) Label() string {
	if label, ok := stockStatusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// ParseStockStatus returns the status for a given label (case-insensitive).
func ParseStockStatus(label string) (StockStatus, bool) {
	s := StockStatus(strings.ToLower(strings.TrimSpace(label)))
	_, ok := stockStatusLabels[s]

	return s, ok
}
