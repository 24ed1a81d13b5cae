package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

type stockRepository struct {
	db *DB
}

func NewStockRepository(db *DB) repository.StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) UpsertStock(ctx context.Context, levels []domain.ProductStock) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO stock_levels (product, current_stock, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product)
		DO UPDATE SET current_stock = EXCLUDED.current_stock, updated_at = NOW()
	`

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, l := range levels {
			if _, err := stmt.ExecContext(ctx, l.Product, l.CurrentStock); err != nil {
				return fmt.Errorf("failed to upsert stock for %s: %w", l.Product, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(levels), nil
}

func (r *stockRepository) ListStock(ctx context.Context) ([]domain.ProductStock, error) {
	query := `
		SELECT product, current_stock
		FROM stock_levels
		ORDER BY product
	`

	var levels []domain.ProductStock
	if err := sqlx.SelectContext(ctx, r.db, &levels, query); err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}

	return levels, nil
}

func (r *stockRepository) GetStock(ctx context.Context, product string) (domain.ProductStock, error) {
	query := `
		SELECT product, current_stock
		FROM stock_levels
		WHERE product = $1
	`

	var level domain.ProductStock
	err := sqlx.GetContext(ctx, r.db, &level, query, product)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductStock{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.ProductStock{}, fmt.Errorf("failed to get stock level: %w", err)
	}

	return level, nil
}
