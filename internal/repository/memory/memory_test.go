package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSalesFiltering(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.InsertSales(ctx, []domain.SalesRecord{
		{Date: day0.AddDate(0, 0, 2), Product: "b", Quantity: 1},
		{Date: day0, Product: "a", Quantity: 2},
		{Date: day0.AddDate(0, 0, 5), Product: "a", Quantity: 3},
	})
	require.NoError(t, err)

	all, err := repo.ListSales(ctx, repository.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day0, all[0].Date)

	onlyA, err := repo.ListSales(ctx, repository.HistoryFilter{Products: []string{"a"}, To: day0.AddDate(0, 0, 4)})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, 2.0, onlyA[0].Quantity)

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, products)
}

func TestInsertSalesUpsertsPerSourceFile(t *testing.T) {
	ctx := context.Background()
	repo := New()

	n, err := repo.InsertSales(ctx, []domain.SalesRecord{
		{Date: day0, Product: "a", Quantity: 2, SourceFile: "x.csv"},
		{Date: day0.Add(9 * time.Hour), Product: "a", Quantity: 3, SourceFile: "x.csv"},
		{Date: day0, Product: "a", Quantity: 4, SourceFile: "y.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.InsertSales(ctx, []domain.SalesRecord{
		{Date: day0, Product: "a", Quantity: 1, SourceFile: "x.csv"},
	})
	require.NoError(t, err)

	all, err := repo.ListSales(ctx, repository.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	total := 0.0
	for _, r := range all {
		total += r.Quantity
	}
	assert.Equal(t, 5.0, total)

	_, err = repo.InsertReceipts(ctx, []domain.StockReceipt{
		{Date: day0, Product: "a", Quantity: 10, SourceFile: "r.csv"},
	})
	require.NoError(t, err)
	_, err = repo.InsertReceipts(ctx, []domain.StockReceipt{
		{Date: day0, Product: "a", Quantity: 6, SourceFile: "r.csv"},
	})
	require.NoError(t, err)

	receipts, err := repo.ListReceipts(ctx, repository.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, 6.0, receipts[0].Quantity)
}

func TestStockLevels(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.UpsertStock(ctx, []domain.ProductStock{{Product: "b", CurrentStock: 1}, {Product: "a", CurrentStock: 2}})
	require.NoError(t, err)
	_, err = repo.UpsertStock(ctx, []domain.ProductStock{{Product: "a", CurrentStock: 9}})
	require.NoError(t, err)

	levels, err := repo.ListStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductStock{{Product: "a", CurrentStock: 9}, {Product: "b", CurrentStock: 1}}, levels)

	_, err = repo.GetStock(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAnalysisRuns(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.LatestReport(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)

	first := &domain.AnalysisReport{Run: domain.AnalysisRun{ID: uuid.New(), Status: domain.RunStatusCompleted}}
	require.NoError(t, repo.SaveReport(ctx, first))

	running := domain.AnalysisRun{ID: uuid.New(), Status: domain.RunStatusRunning}
	require.NoError(t, repo.CreateRun(ctx, &running))
	require.NoError(t, repo.FailRun(ctx, running.ID, errors.New("boom")))

	latest, err := repo.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Run.ID, latest.Run.ID)

	failed, err := repo.GetReport(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, failed.Run.Status)
	assert.Equal(t, "boom", failed.Run.ErrorMessage)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, running.ID, runs[0].ID)
}
