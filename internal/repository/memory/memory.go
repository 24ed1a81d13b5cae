// Package memory holds process-local repositories used by the one-shot CLI
// and by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/google/uuid"
)

type Repository struct {
	mu           sync.RWMutex
	sales        []domain.SalesRecord
	salesIndex   map[repository.HistoryKey]int
	receipts     []domain.StockReceipt
	receiptIndex map[repository.HistoryKey]int
	stock        map[string]float64
	runs         map[uuid.UUID]*domain.AnalysisReport
	order        []uuid.UUID
}

func New() *Repository {
	return &Repository{
		salesIndex:   make(map[repository.HistoryKey]int),
		receiptIndex: make(map[repository.HistoryKey]int),
		stock:        make(map[string]float64),
		runs:         make(map[uuid.UUID]*domain.AnalysisReport),
	}
}

// Store exposes the repository through every interface.
func (r *Repository) Store() repository.Store {
	return repository.Store{Sales: r, Receipts: r, Stock: r, Analysis: r}
}

var (
	_ repository.SalesRepository    = (*Repository)(nil)
	_ repository.ReceiptRepository  = (*Repository)(nil)
	_ repository.StockRepository    = (*Repository)(nil)
	_ repository.AnalysisRepository = (*Repository)(nil)
)

func (r *Repository) InsertSales(_ context.Context, records []domain.SalesRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range repository.CollapseSales(records) {
		key := repository.HistoryKey{Date: rec.Date, Product: rec.Product, SourceFile: rec.SourceFile}
		if i, ok := r.salesIndex[key]; ok {
			r.sales[i].Quantity = rec.Quantity
			continue
		}
		r.salesIndex[key] = len(r.sales)
		r.sales = append(r.sales, rec)
	}
	return len(records), nil
}

func (r *Repository) ListSales(_ context.Context, filter repository.HistoryFilter) ([]domain.SalesRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SalesRecord, 0, len(r.sales))
	for _, s := range r.sales {
		if filter.Matches(s.Product, s.Date) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *Repository) ListProducts(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.sales {
		if _, ok := seen[s.Product]; !ok {
			seen[s.Product] = struct{}{}
			out = append(out, s.Product)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repository) InsertReceipts(_ context.Context, receipts []domain.StockReceipt) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range repository.CollapseReceipts(receipts) {
		key := repository.HistoryKey{Date: rec.Date, Product: rec.Product, SourceFile: rec.SourceFile}
		if i, ok := r.receiptIndex[key]; ok {
			r.receipts[i].Quantity = rec.Quantity
			continue
		}
		r.receiptIndex[key] = len(r.receipts)
		r.receipts = append(r.receipts, rec)
	}
	return len(receipts), nil
}

func (r *Repository) ListReceipts(_ context.Context, filter repository.HistoryFilter) ([]domain.StockReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.StockReceipt, 0, len(r.receipts))
	for _, s := range r.receipts {
		if filter.Matches(s.Product, s.Date) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *Repository) UpsertStock(_ context.Context, levels []domain.ProductStock) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range levels {
		r.stock[l.Product] = l.CurrentStock
	}
	return len(levels), nil
}

func (r *Repository) ListStock(_ context.Context) ([]domain.ProductStock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ProductStock, 0, len(r.stock))
	for p, v := range r.stock {
		out = append(out, domain.ProductStock{Product: p, CurrentStock: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out, nil
}

func (r *Repository) GetStock(_ context.Context, product string) (domain.ProductStock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.stock[product]
	if !ok {
		return domain.ProductStock{}, domain.ErrProductNotFound
	}
	return domain.ProductStock{Product: product, CurrentStock: v}, nil
}

func (r *Repository) CreateRun(_ context.Context, run *domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = &domain.AnalysisReport{Run: *run}
	return nil
}

func (r *Repository) SaveReport(_ context.Context, report *domain.AnalysisReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[report.Run.ID]; !ok {
		r.order = append(r.order, report.Run.ID)
	}
	saved := *report
	saved.Metrics = append([]domain.ProductMetrics(nil), report.Metrics...)
	r.runs[report.Run.ID] = &saved
	return nil
}

func (r *Repository) FailRun(_ context.Context, runID uuid.UUID, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.runs[runID]
	if !ok {
		return domain.ErrNoAnalysis
	}
	report.Run.Status = domain.RunStatusFailed
	if cause != nil {
		report.Run.ErrorMessage = cause.Error()
	}
	return nil
}

// LatestReport returns the most recently saved completed run.
func (r *Repository) LatestReport(_ context.Context) (*domain.AnalysisReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		report := r.runs[r.order[i]]
		if report.Run.Status == domain.RunStatusCompleted {
			out := *report
			return &out, nil
		}
	}
	return nil, domain.ErrNoAnalysis
}

func (r *Repository) GetReport(_ context.Context, runID uuid.UUID) (*domain.AnalysisReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.runs[runID]
	if !ok {
		return nil, domain.ErrNoAnalysis
	}
	out := *report
	return &out, nil
}

func (r *Repository) ListRuns(_ context.Context, limit int) ([]domain.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.AnalysisRun
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[r.order[i]].Run)
	}
	return out, nil
}
