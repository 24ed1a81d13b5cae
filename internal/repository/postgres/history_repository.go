package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

type historyRepository struct {
	db *DB
}

// NewHistoryRepository stores sales and receipts; it serves both interfaces.
func NewHistoryRepository(db *DB) *historyRepository {
	return &historyRepository{db: db}
}

var (
	_ repository.SalesRepository   = (*historyRepository)(nil)
	_ repository.ReceiptRepository = (*historyRepository)(nil)
)

func (r *historyRepository) InsertSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO sales_records (sale_date, product, quantity, source_file)
		VALUES (:sale_date, :product, :quantity, :source_file)
		ON CONFLICT (sale_date, product, source_file) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			created_at = NOW()
	`

	// one statement may not touch the same conflict key twice
	rows := repository.CollapseSales(records)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range chunks(len(rows), insertChunkSize) {
			if _, err := tx.NamedExecContext(ctx, query, rows[c[0]:c[1]]); err != nil {
				return fmt.Errorf("failed to insert sales records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(records), nil
}

func (r *historyRepository) ListSales(ctx context.Context, filter repository.HistoryFilter) ([]domain.SalesRecord, error) {
	where, args := buildHistoryFilterClause(filter, "sale_date", 1)
	query := `
		SELECT sale_date, product, quantity, source_file
		FROM sales_records` + where + `
		ORDER BY sale_date ASC, id ASC
	`

	var records []domain.SalesRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	return records, nil
}

func (r *historyRepository) ListProducts(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT product
		FROM sales_records
		ORDER BY product
	`

	var products []string
	if err := sqlx.SelectContext(ctx, r.db, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

func (r *historyRepository) InsertReceipts(ctx context.Context, receipts []domain.StockReceipt) (int, error) {
	if len(receipts) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO stock_receipts (receipt_date, product, quantity, source_file)
		VALUES (:receipt_date, :product, :quantity, :source_file)
		ON CONFLICT (receipt_date, product, source_file) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			created_at = NOW()
	`

	rows := repository.CollapseReceipts(receipts)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range chunks(len(rows), insertChunkSize) {
			if _, err := tx.NamedExecContext(ctx, query, rows[c[0]:c[1]]); err != nil {
				return fmt.Errorf("failed to insert stock receipts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(receipts), nil
}

func (r *historyRepository) ListReceipts(ctx context.Context, filter repository.HistoryFilter) ([]domain.StockReceipt, error) {
	where, args := buildHistoryFilterClause(filter, "receipt_date", 1)
	query := `
		SELECT receipt_date, product, quantity, source_file
		FROM stock_receipts` + where + `
		ORDER BY receipt_date ASC, id ASC
	`

	var receipts []domain.StockReceipt
	if err := sqlx.SelectContext(ctx, r.db, &receipts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	return receipts, nil
}
