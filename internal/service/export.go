package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

var metricsHeader = []string{
	"product",
	"reorder_point",
	"order_quantity",
	"avg_daily_forecast",
	"lead_time_demand",
	"safety_stock",
	"historical_days_count",
	"total_volume_sold",
	"abc_class",
	"error",
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func metricsRecord(m domain.ProductMetrics) []string {
	return []string{
		m.Product,
		formatQty(m.ReorderPoint()),
		formatQty(m.OrderQuantity()),
		formatQty(m.AvgDailyForecast()),
		formatQty(m.LeadTimeDemand()),
		formatQty(m.SafetyStock()),
		strconv.Itoa(m.HistoricalDays),
		formatQty(m.TotalVolumeSold),
		string(m.ABCClass),
		m.Error(),
	}
}

// WriteMetricsCSV writes one row per product in report order.
func WriteMetricsCSV(w io.Writer, report *domain.AnalysisReport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(metricsHeader); err != nil {
		return err
	}
	for _, m := range report.Metrics {
		if err := writer.Write(metricsRecord(m)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMetricsXLSX writes the same table as WriteMetricsCSV into a single
// sheet, keeping numeric cells numeric.
func WriteMetricsXLSX(w io.Writer, report *domain.AnalysisReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Reorder"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(metricsHeader))
	for i, h := range metricsHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, m := range report.Metrics {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			m.Product,
			m.ReorderPoint(),
			m.OrderQuantity(),
			m.AvgDailyForecast(),
			m.LeadTimeDemand(),
			m.SafetyStock(),
			m.HistoricalDays,
			m.TotalVolumeSold,
			string(m.ABCClass),
			m.Error(),
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// RenderMetrics returns the export body and its file extension.
func RenderMetrics(report *domain.AnalysisReport, format ExportFormat) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatXLSX:
		err = WriteMetricsXLSX(&buf, report)
	default:
		err = WriteMetricsCSV(&buf, report)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	return buf.Bytes(), nil
}
