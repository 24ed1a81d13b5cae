package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/andresuchdata/stockzero/backend-go/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AnalysisService runs batch analyses over the stored sales history and
// keeps their reports.
type AnalysisService struct {
	store    repository.Store
	analyzer *reorder.Analyzer
	cache    cache.AnalysisCache
	exports  storage.ObjectStorage
	defaults domain.AnalysisParams
	now      func() time.Time
}

// NewAnalysisService wires the analyzer to the repositories. exports may be
// nil, in which case finished reports are not uploaded.
func NewAnalysisService(store repository.Store, analyzer *reorder.Analyzer, cacheImpl cache.AnalysisCache, exports storage.ObjectStorage, defaults domain.AnalysisParams) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &AnalysisService{
		store:    store,
		analyzer: analyzer,
		cache:    cacheImpl,
		exports:  exports,
		defaults: defaults.WithDefaults(),
		now:      time.Now,
	}
}

// Defaults returns the parameters used for zero fields of a request.
func (s *AnalysisService) Defaults() domain.AnalysisParams {
	return s.defaults
}

// MergeParams fills zero lead time and seasonal period from the configured
// defaults. Safety stock is taken as given; callers that cannot tell an
// absent value from 0 start from Defaults.
func (s *AnalysisService) MergeParams(params domain.AnalysisParams) domain.AnalysisParams {
	if params.LeadTimeDays == 0 {
		params.LeadTimeDays = s.defaults.LeadTimeDays
	}
	if params.SeasonalPeriodDays == 0 {
		params.SeasonalPeriodDays = s.defaults.SeasonalPeriodDays
	}
	return params
}

// Run analyzes the whole sales history with params and persists the report.
// A run row is written before the analysis starts so failures stay visible.
func (s *AnalysisService) Run(ctx context.Context, params domain.AnalysisParams, source string) (*domain.AnalysisReport, error) {
	params = s.MergeParams(params)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	run := &domain.AnalysisRun{
		ID:                 uuid.New(),
		Source:             source,
		Status:             domain.RunStatusRunning,
		LeadTimeDays:       params.LeadTimeDays,
		SafetyStockDays:    params.SafetyStockDays,
		SeasonalPeriodDays: params.SeasonalPeriodDays,
		StartedAt:          s.now().UTC(),
	}
	if err := s.store.Analysis.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create analysis run: %w", err)
	}

	report, err := s.analyze(ctx, params)
	if err != nil {
		if ferr := s.store.Analysis.FailRun(context.WithoutCancel(ctx), run.ID, err); ferr != nil {
			log.Error().Err(ferr).Str("run_id", run.ID.String()).Msg("analysis: failed to mark run as failed")
		}
		return nil, err
	}

	report.Run.ID = run.ID
	report.Run.Source = source
	report.Run.StartedAt = run.StartedAt

	if err := s.store.Analysis.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save analysis report: %w", err)
	}

	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("analysis: cache invalidation failed")
	}
	if err := s.cache.SetLatest(ctx, report); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set latest failed")
	}

	s.upload(ctx, report)
	return report, nil
}

func (s *AnalysisService) analyze(ctx context.Context, params domain.AnalysisParams) (*domain.AnalysisReport, error) {
	sales, err := s.store.Sales.ListSales(ctx, repository.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}
	return s.analyzer.Analyze(ctx, sales, params)
}

func exportKey(runID uuid.UUID, format ExportFormat) string {
	return fmt.Sprintf("exports/%s.%s", runID, format)
}

// upload is best effort; the report is already persisted.
func (s *AnalysisService) upload(ctx context.Context, report *domain.AnalysisReport) {
	if s.exports == nil {
		return
	}
	body, err := RenderMetrics(report, FormatCSV)
	if err == nil {
		err = s.exports.UploadObject(ctx, exportKey(report.Run.ID, FormatCSV), body)
	}
	if err != nil {
		log.Warn().Err(err).Str("run_id", report.Run.ID.String()).Msg("analysis: export upload failed")
	}
}

// Latest returns the most recent completed report.
func (s *AnalysisService) Latest(ctx context.Context) (*domain.AnalysisReport, error) {
	if report, ok, err := s.cache.GetLatest(ctx); err == nil && ok {
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("analysis: cache get latest failed")
	}

	report, err := s.store.Analysis.LatestReport(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetLatest(ctx, report); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set latest failed")
	}
	return report, nil
}

// LatestOrNil is Latest without the ErrNoAnalysis case.
func (s *AnalysisService) LatestOrNil(ctx context.Context) (*domain.AnalysisReport, error) {
	report, err := s.Latest(ctx)
	if errors.Is(err, domain.ErrNoAnalysis) {
		return nil, nil
	}
	return report, err
}

func (s *AnalysisService) Get(ctx context.Context, runID uuid.UUID) (*domain.AnalysisReport, error) {
	return s.store.Analysis.GetReport(ctx, runID)
}

func (s *AnalysisService) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	return s.store.Analysis.ListRuns(ctx, limit)
}

// Product returns the metrics of one product from the latest report.
func (s *AnalysisService) Product(ctx context.Context, product string) (domain.ProductMetrics, error) {
	report, err := s.Latest(ctx)
	if err != nil {
		return domain.ProductMetrics{}, err
	}
	m, ok := report.Find(product)
	if !ok {
		return domain.ProductMetrics{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, product)
	}
	return m, nil
}

// Export renders a stored report.
func (s *AnalysisService) Export(ctx context.Context, runID uuid.UUID, format ExportFormat) ([]byte, error) {
	report, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return RenderMetrics(report, format)
}
