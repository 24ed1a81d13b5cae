package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/andresuchdata/stockzero/backend-go/internal/simulation"
	"github.com/rs/zerolog/log"
)

// SimulationRequest selects the product and overrides for one simulation.
// A nil CurrentStock means the stored stock level is used.
type SimulationRequest struct {
	Product      string
	CurrentStock *float64
	HorizonDays  int
	Today        time.Time
}

// SimulationService feeds the simulator with stored history, the latest
// reorder metrics and the current stock of a product.
type SimulationService struct {
	store     repository.Store
	analysis  *AnalysisService
	analyzer  *reorder.Analyzer
	simulator *simulation.Simulator
	cache     cache.AnalysisCache
	horizon   int
	now       func() time.Time
}

func NewSimulationService(store repository.Store, analysis *AnalysisService, analyzer *reorder.Analyzer, simulator *simulation.Simulator, cacheImpl cache.AnalysisCache, horizonDays int) *SimulationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &SimulationService{
		store:     store,
		analysis:  analysis,
		analyzer:  analyzer,
		simulator: simulator,
		cache:     cacheImpl,
		horizon:   horizonDays,
		now:       time.Now,
	}
}

func (s *SimulationService) Simulate(ctx context.Context, req SimulationRequest) (*domain.SimulationTrace, error) {
	if req.Product == "" {
		return nil, fmt.Errorf("%w: product is required", domain.ErrInvalidParams)
	}

	today := req.Today
	if today.IsZero() {
		today = s.now()
	}
	today = domain.TruncateDay(today)

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = s.horizon
	}

	stock, err := s.currentStock(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := s.analysis.LatestOrNil(ctx)
	if err != nil {
		return nil, err
	}
	runID := ""
	if report != nil {
		runID = report.Run.ID.String()
	}

	key := map[string]string{
		"product": req.Product,
		"stock":   strconv.FormatFloat(stock, 'f', -1, 64),
		"horizon": strconv.Itoa(horizon),
		"today":   today.Format("2006-01-02"),
		"run":     runID,
	}
	if trace, ok, err := s.cache.GetSimulation(ctx, key); err == nil && ok {
		return trace, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("simulation: cache get failed")
	}

	filter := repository.HistoryFilter{Products: []string{req.Product}}
	sales, err := s.store.Sales.ListSales(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	receipts, err := s.store.Receipts.ListReceipts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}

	params := s.analysis.Defaults()
	if report != nil {
		params = report.Run.Params()
	}

	m, err := s.productMetrics(ctx, report, req.Product, sales, params)
	if err != nil {
		return nil, err
	}

	trace, err := s.simulator.Simulate(domain.SimulationInput{
		Product:          req.Product,
		Sales:            sales,
		Receipts:         receipts,
		CurrentStock:     stock,
		Today:            today,
		ReorderPoint:     m.ReorderPoint(),
		OrderQuantity:    m.OrderQuantity(),
		AvgDailyForecast: m.AvgDailyForecast(),
		Forecast:         m.ForecastValues(),
		ForecastStart:    m.ForecastStart(),
		LeadTimeDays:     params.LeadTimeDays,
		SafetyStockDays:  params.SafetyStockDays,
		HorizonDays:      horizon,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSimulation(ctx, key, trace); err != nil {
		log.Warn().Err(err).Msg("simulation: cache set failed")
	}
	return trace, nil
}

func (s *SimulationService) currentStock(ctx context.Context, req SimulationRequest) (float64, error) {
	if req.CurrentStock != nil {
		return *req.CurrentStock, nil
	}
	level, err := s.store.Stock.GetStock(ctx, req.Product)
	if errors.Is(err, domain.ErrProductNotFound) {
		log.Debug().Str("product", req.Product).Msg("simulation: no stored stock level, assuming zero")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load stock level: %w", err)
	}
	return level.CurrentStock, nil
}

// productMetrics prefers the latest batch result. Products that joined the
// history after that run are analyzed on their own. An errored product
// simulates with no reorder policy.
func (s *SimulationService) productMetrics(ctx context.Context, report *domain.AnalysisReport, product string, sales []domain.SalesRecord, params domain.AnalysisParams) (domain.ProductMetrics, error) {
	if m, ok := report.Find(product); ok {
		return m, nil
	}
	if len(sales) == 0 {
		return domain.ProductMetrics{Product: product, ABCClass: domain.ClassNA}, nil
	}
	return s.analyzer.AnalyzeProduct(ctx, product, sales, params)
}
