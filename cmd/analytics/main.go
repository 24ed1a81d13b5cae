// cmd/analytics/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/memory"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/andresuchdata/stockzero/backend-go/pkg/logger"
)

// One-shot reorder report over local files, without a database.
func main() {
	dataDir := flag.String("data-dir", "./data/inbox", "Directory containing sales, receipts and stock files")
	outputDir := flag.String("output-dir", "./data/output/analytics", "Directory for the reorder report")
	formats := flag.String("formats", "csv,xlsx", "Comma separated report formats")
	leadTime := flag.Int("lead-time", domain.DefaultLeadTimeDays, "Lead time in days")
	safetyDays := flag.Int("safety-days", domain.DefaultSafetyStockDays, "Safety stock in days")
	season := flag.Int("season", domain.DefaultSeasonalPeriodDays, "Seasonal period in days")
	workers := flag.Int("workers", 4, "Concurrent file and product workers")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger.Configure(*logLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipeline.DefaultConfig("analytics")
	cfg.WorkerCount = *workers
	cfg.OutputDir = *outputDir
	cfg.DownloadDir = ""
	cfg.RetryAttempts = 1
	cfg.Params = domain.AnalysisParams{
		LeadTimeDays:       *leadTime,
		SafetyStockDays:    *safetyDays,
		SeasonalPeriodDays: *season,
	}
	cfg.ExportFormats = nil
	for _, f := range strings.Split(*formats, ",") {
		format, err := service.ParseExportFormat(strings.TrimSpace(f))
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Invalid format")
		}
		cfg.ExportFormats = append(cfg.ExportFormats, format)
	}

	store := memory.New().Store()
	analyzer := reorder.NewAnalyzer(forecast.NewForecaster(2*time.Second), *workers, nil)
	analysis := service.NewAnalysisService(store, analyzer, nil, nil, cfg.Params)
	importer := service.NewImportService(store, nil, nil)
	orchestrator := pipeline.NewOrchestrator(cfg, pipeline.NewMemoryRepository(), importer, analysis, nil)

	start := time.Now()
	result, err := orchestrator.Run(ctx, pipeline.LocalSource{Dir: *dataDir})
	if err != nil {
		logger.Log.Fatal().Err(err).Str("dir", *dataDir).Msg("Analysis failed")
	}
	if result.Report == nil {
		logger.Log.Warn().Str("dir", *dataDir).Msg("No files found")
		return
	}

	printReport(result.Report)
	for _, path := range result.Outputs {
		logger.Log.Info().Str("path", path).Msg("Wrote report")
	}
	logger.Log.Info().Dur("elapsed", time.Since(start)).Msg("Done")
}

func printReport(report *domain.AnalysisReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()

	fmt.Fprintln(w, "PRODUCT\tROP\tQTY\tAVG/DAY\tDAYS\tVOLUME\tABC\t")
	for _, m := range report.Metrics {
		if !m.OK() {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%d\t%.2f\t%s\t%s\n", m.Product, m.HistoricalDays, m.TotalVolumeSold, m.ABCClass, m.Error())
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%s\t\n",
			m.Product, m.ReorderPoint(), m.OrderQuantity(), m.AvgDailyForecast(),
			m.HistoricalDays, m.TotalVolumeSold, m.ABCClass)
	}
}
