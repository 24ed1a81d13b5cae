package postgres

import "github.com/andresuchdata/stockzero/backend-go/internal/repository"

// NewStore wires every Postgres repository onto one connection pool.
func NewStore(db *DB) repository.Store {
	history := NewHistoryRepository(db)
	return repository.Store{
		Sales:    history,
		Receipts: history,
		Stock:    NewStockRepository(db),
		Analysis: NewAnalysisRepository(db),
	}
}
