package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/xuri/excelize/v2"
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "?", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))
	return columnNameSanitizer.Replace(name)
}

var (
	dateColumns     = []string{"date", "fecha", "saledate", "receiptdate", "day"}
	productColumns  = []string{"product", "producto", "sku", "item", "productname"}
	salesQtyColumns = []string{"quantitysold", "cantidadvendida", "qtysold", "sold", "quantity", "qty", "cantidad"}
	recvQtyColumns  = []string{"quantityreceived", "cantidadrecibida", "qtyreceived", "received", "quantity", "qty", "cantidad"}
	stockColumns    = []string{"currentstock", "stockactual", "stock", "onhand", "quantity", "cantidad"}
)

// colIndex returns the index of the first header matching any alias, in alias
// order, or -1.
func colIndex(header []string, aliases []string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeColumnName(h)
	}
	for _, alias := range aliases {
		for i, h := range normalized {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite quantity %q", v)
	}
	return f, nil
}

// quantity coerces a cell to a non-negative number. Unparseable and
// negative values count as 0 so the row still marks a day of history.
func quantity(v string) float64 {
	f, err := parseFloat(v)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"20060102",
}

// Excel stores dates as day serials; anything in this range is read as one.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// parseDate accepts ISO dates, day-first dates and raw Excel serials, and
// returns the UTC calendar day.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return domain.TruncateDay(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return domain.TruncateDay(t), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}
