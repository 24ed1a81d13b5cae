package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andresuchdata/stockzero/backend-go/internal/analytics"
	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// DashboardRequest narrows the dashboard. Stocks, when set, replaces the
// stored stock levels for this request only.
type DashboardRequest struct {
	PeriodDays int
	Filter     repository.HistoryFilter
	Stocks     []domain.ProductStock
}

// InsightsService builds the sales and inventory dashboard.
type InsightsService struct {
	store    repository.Store
	analysis *AnalysisService
	cache    cache.AnalysisCache
}

func NewInsightsService(store repository.Store, analysis *AnalysisService, cacheImpl cache.AnalysisCache) *InsightsService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &InsightsService{store: store, analysis: analysis, cache: cacheImpl}
}

func (s *InsightsService) Dashboard(ctx context.Context, req DashboardRequest) (*domain.Dashboard, error) {
	report, err := s.analysis.LatestOrNil(ctx)
	if err != nil {
		return nil, err
	}

	// ad-hoc stock overrides are never cached
	cacheable := req.Stocks == nil
	key := dashboardKey(req, report)
	if cacheable {
		if dashboard, ok, err := s.cache.GetDashboard(ctx, key); err == nil && ok {
			return dashboard, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("insights: cache get dashboard failed")
		}
	}

	sales, err := s.store.Sales.ListSales(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	stocks := req.Stocks
	if stocks == nil {
		stocks, err = s.store.Stock.ListStock(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load stock levels: %w", err)
		}
	}

	dashboard := analytics.NewProcessor(req.PeriodDays).Build(sales, stocks, report)

	if cacheable {
		if err := s.cache.SetDashboard(ctx, key, &dashboard); err != nil {
			log.Warn().Err(err).Msg("insights: cache set dashboard failed")
		}
	}
	return &dashboard, nil
}

func dashboardKey(req DashboardRequest, report *domain.AnalysisReport) map[string]string {
	key := map[string]string{
		"period": strconv.Itoa(req.PeriodDays),
	}
	if report != nil {
		key["run"] = report.Run.ID.String()
	}
	if !req.Filter.From.IsZero() {
		key["from"] = req.Filter.From.Format("2006-01-02")
	}
	if !req.Filter.To.IsZero() {
		key["to"] = req.Filter.To.Format("2006-01-02")
	}
	for i, p := range req.Filter.Products {
		key["product"+strconv.Itoa(i)] = p
	}
	return key
}
