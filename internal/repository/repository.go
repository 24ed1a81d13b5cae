// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/google/uuid"
)

// HistoryFilter narrows sales or receipt queries. Zero fields are ignored;
// From and To are inclusive calendar days.
type HistoryFilter struct {
	Products []string
	From     time.Time
	To       time.Time
}

// Matches applies the filter in memory.
func (f HistoryFilter) Matches(product string, date time.Time) bool {
	if len(f.Products) > 0 {
		found := false
		for _, p := range f.Products {
			if p == product {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	day := domain.TruncateDay(date)
	if !f.From.IsZero() && day.Before(domain.TruncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(domain.TruncateDay(f.To)) {
		return false
	}
	return true
}

// HistoryKey identifies a stored history row. Importing the same file again
// overwrites its rows instead of adding to them.
type HistoryKey struct {
	Date       time.Time
	Product    string
	SourceFile string
}

// CollapseSales sums records sharing a HistoryKey, keeping first-seen order.
func CollapseSales(records []domain.SalesRecord) []domain.SalesRecord {
	out := make([]domain.SalesRecord, 0, len(records))
	index := make(map[HistoryKey]int, len(records))
	for _, r := range records {
		r.Date = domain.TruncateDay(r.Date)
		key := HistoryKey{Date: r.Date, Product: r.Product, SourceFile: r.SourceFile}
		if i, ok := index[key]; ok {
			out[i].Quantity += r.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// CollapseReceipts is CollapseSales for receipts.
func CollapseReceipts(receipts []domain.StockReceipt) []domain.StockReceipt {
	out := make([]domain.StockReceipt, 0, len(receipts))
	index := make(map[HistoryKey]int, len(receipts))
	for _, r := range receipts {
		r.Date = domain.TruncateDay(r.Date)
		key := HistoryKey{Date: r.Date, Product: r.Product, SourceFile: r.SourceFile}
		if i, ok := index[key]; ok {
			out[i].Quantity += r.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// SalesRepository upserts history on HistoryKey; the returned count is the
// number of input records accepted.
type SalesRepository interface {
	InsertSales(ctx context.Context, records []domain.SalesRecord) (int, error)
	ListSales(ctx context.Context, filter HistoryFilter) ([]domain.SalesRecord, error)
	ListProducts(ctx context.Context) ([]string, error)
}

type ReceiptRepository interface {
	InsertReceipts(ctx context.Context, receipts []domain.StockReceipt) (int, error)
	ListReceipts(ctx context.Context, filter HistoryFilter) ([]domain.StockReceipt, error)
}

// StockRepository keeps the latest known on-hand quantity per product.
type StockRepository interface {
	UpsertStock(ctx context.Context, levels []domain.ProductStock) (int, error)
	ListStock(ctx context.Context) ([]domain.ProductStock, error)
	GetStock(ctx context.Context, product string) (domain.ProductStock, error)
}

type AnalysisRepository interface {
	CreateRun(ctx context.Context, run *domain.AnalysisRun) error
	SaveReport(ctx context.Context, report *domain.AnalysisReport) error
	FailRun(ctx context.Context, runID uuid.UUID, cause error) error
	LatestReport(ctx context.Context) (*domain.AnalysisReport, error)
	GetReport(ctx context.Context, runID uuid.UUID) (*domain.AnalysisReport, error)
	ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error)
}

// Store bundles every repository a service needs.
type Store struct {
	Sales    SalesRepository
	Receipts ReceiptRepository
	Stock    StockRepository
	Analysis AnalysisRepository
}
