package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/cache"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// ImportService loads sales, receipt and stock files into the repositories.
type ImportService struct {
	store    repository.Store
	cache    cache.AnalysisCache
	recorder *metrics.Recorder
	now      func() time.Time
}

func NewImportService(store repository.Store, cacheImpl cache.AnalysisCache, recorder *metrics.Recorder) *ImportService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &ImportService{store: store, cache: cacheImpl, recorder: recorder, now: time.Now}
}

// Import parses r as a CSV or XLSX file of the given kind and stores its rows.
// Importing the same filename again replaces the quantities it stored before.
func (s *ImportService) Import(ctx context.Context, r io.Reader, filename string, kind ingest.Kind) (*domain.ImportResult, error) {
	batch, err := ingest.Read(r, filename, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	batch.SetSource(filename)
	return s.Store(ctx, filename, batch)
}

// ImportFile is Import for a file on disk.
func (s *ImportService) ImportFile(ctx context.Context, path string, kind ingest.Kind) (*domain.ImportResult, error) {
	batch, err := ingest.ReadFile(path, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	batch.SetSource(path)
	return s.Store(ctx, path, batch)
}

// Store persists an already parsed batch and drops cached analysis results.
// Rows keep the SourceFile they were tagged with.
func (s *ImportService) Store(ctx context.Context, filename string, batch *ingest.Batch) (*domain.ImportResult, error) {
	var (
		n   int
		err error
	)
	switch batch.Kind {
	case ingest.KindSales:
		n, err = s.store.Sales.InsertSales(ctx, batch.Sales)
	case ingest.KindReceipts:
		n, err = s.store.Receipts.InsertReceipts(ctx, batch.Receipts)
	case ingest.KindStock:
		n, err = s.store.Stock.UpsertStock(ctx, batch.Stock)
	default:
		return nil, ingest.ErrUnknownKind
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store %s rows: %w", batch.Kind, err)
	}

	s.recorder.AddImportedRows(string(batch.Kind), n)
	if n > 0 {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("import: cache invalidation failed")
		}
	}

	log.Info().
		Str("file", filename).
		Str("kind", string(batch.Kind)).
		Int("rows", n).
		Int("skipped", batch.Skipped).
		Msg("Imported file")

	return &domain.ImportResult{
		Filename:    filename,
		Kind:        string(batch.Kind),
		Rows:        n,
		Products:    batch.Products(),
		SkippedRows: batch.Skipped,
		ImportedAt:  s.now().UTC(),
	}, nil
}
