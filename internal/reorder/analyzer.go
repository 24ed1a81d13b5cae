package reorder

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Analyzer runs the forecast and reorder calculation over a batch of products
// and classifies the batch once every product is done.
type Analyzer struct {
	forecaster *forecast.Forecaster
	workers    int
	recorder   *metrics.Recorder
	now        func() time.Time
}

func NewAnalyzer(forecaster *forecast.Forecaster, workers int, recorder *metrics.Recorder) *Analyzer {
	if forecaster == nil {
		forecaster = forecast.NewForecaster(0)
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Analyzer{
		forecaster: forecaster,
		workers:    workers,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Analyze computes ProductMetrics for every product in sales. Per-product
// failures are recorded on that product and never fail the batch; only an
// invalid configuration or a cancelled ctx returns an error.
func (a *Analyzer) Analyze(ctx context.Context, sales []domain.SalesRecord, params domain.AnalysisParams) (*domain.AnalysisReport, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	run := domain.AnalysisRun{
		ID:                 uuid.New(),
		Status:             domain.RunStatusRunning,
		LeadTimeDays:       params.LeadTimeDays,
		SafetyStockDays:    params.SafetyStockDays,
		SeasonalPeriodDays: params.SeasonalPeriodDays,
		StartedAt:          a.now(),
	}

	products, byProduct := forecast.GroupSales(sales)
	results := make([]domain.ProductMetrics, len(products))
	calc := NewCalculator(params)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, product := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeProduct(gctx, calc, product, byProduct[product], params)
			return nil
		})
	}

	// barrier: classification needs every product of the batch
	if err := g.Wait(); err != nil {
		a.recorder.ObserveBatch(string(domain.RunStatusFailed), len(products))
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		a.recorder.ObserveBatch(string(domain.RunStatusFailed), len(products))
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	classified := ClassifyABC(results)

	completed := a.now()
	run.Status = domain.RunStatusCompleted
	run.CompletedAt = &completed
	run.ProductCount = len(classified)
	for _, m := range classified {
		if !m.OK() {
			run.ErrorCount++
		}
	}

	a.recorder.ObserveBatch(string(run.Status), run.ProductCount)
	log.Info().
		Str("run_id", run.ID.String()).
		Int("products", run.ProductCount).
		Int("errors", run.ErrorCount).
		Dur("took", completed.Sub(run.StartedAt)).
		Msg("reorder analysis completed")

	return &domain.AnalysisReport{
		Run:        run,
		Metrics:    classified,
		ABCSummary: domain.SummarizeABC(classified),
	}, nil
}

// AnalyzeProduct runs the single-product path outside of a batch. The ABC
// class of the result is always N/A because it is only defined over a batch.
func (a *Analyzer) AnalyzeProduct(ctx context.Context, product string, sales []domain.SalesRecord, params domain.AnalysisParams) (domain.ProductMetrics, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return domain.ProductMetrics{}, err
	}
	return a.analyzeProduct(ctx, NewCalculator(params), product, sales, params), nil
}

func (a *Analyzer) analyzeProduct(ctx context.Context, calc *Calculator, product string, sales []domain.SalesRecord, params domain.AnalysisParams) domain.ProductMetrics {
	series, err := forecast.PrepareDailySeries(product, sales)
	if err != nil {
		// only reachable when the product has no records at all
		m := calc.Failed(series, &domain.InsufficientHistoryError{Days: 0, Required: params.MinHistoryDays()})
		a.recorder.ObserveProduct(string(domain.KindInsufficientHistory), 0)
		return m
	}

	start := time.Now()
	fc, err := a.forecaster.Forecast(ctx, series, params.SeasonalPeriodDays, params.LeadTimeDays)
	took := time.Since(start)
	if err != nil {
		kind := domain.KindOf(err)
		log.Debug().Err(err).Str("product", product).Str("kind", string(kind)).Msg("forecast skipped")
		a.recorder.ObserveProduct(string(kind), took)
		return calc.Failed(series, err)
	}

	a.recorder.ObserveProduct("ok", took)
	return calc.Calculate(series, fc)
}
