package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/rs/zerolog/log"
)

// FlushFunc stores one merged batch.
type FlushFunc func(ctx context.Context, batch *ingest.Batch) error

type kindBuffer struct {
	batch *ingest.Batch
	files int
}

// StreamingAggregator buffers parsed files per kind and flushes them as one
// merged batch once BatchSize files or BatchRows rows are pending.
type StreamingAggregator struct {
	name    string
	config  Config
	buffers map[ingest.Kind]*kindBuffer
	mu      sync.Mutex
	flush   FlushFunc
	flushed int
}

// NewStreamingAggregator creates a new streaming aggregator for a pipeline
func NewStreamingAggregator(config Config, flush FlushFunc) *StreamingAggregator {
	return &StreamingAggregator{
		name:    config.Name,
		config:  config,
		buffers: make(map[ingest.Kind]*kindBuffer),
		flush:   flush,
	}
}

// Add merges the rows of one parsed file into the buffer of its kind.
func (sa *StreamingAggregator) Add(ctx context.Context, batch *ingest.Batch) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	buf, ok := sa.buffers[batch.Kind]
	if !ok {
		buf = &kindBuffer{batch: &ingest.Batch{Kind: batch.Kind}}
		sa.buffers[batch.Kind] = buf
	}
	merge(buf.batch, batch)
	buf.files++

	log.Debug().
		Str("pipeline", sa.name).
		Str("kind", string(batch.Kind)).
		Int("files", buf.files).
		Int("rows", buf.batch.Len()).
		Msg("Buffered file")

	full := (sa.config.BatchSize > 0 && buf.files >= sa.config.BatchSize) ||
		(sa.config.BatchRows > 0 && buf.batch.Len() >= sa.config.BatchRows)
	if full {
		return sa.flushLocked(ctx, batch.Kind)
	}
	return nil
}

// Finalize flushes whatever is still buffered, sales first.
func (sa *StreamingAggregator) Finalize(ctx context.Context) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	for _, kind := range []ingest.Kind{ingest.KindSales, ingest.KindReceipts, ingest.KindStock} {
		if err := sa.flushLocked(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// Flushed is the number of rows handed to the flush func so far.
func (sa *StreamingAggregator) Flushed() int {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.flushed
}

func (sa *StreamingAggregator) flushLocked(ctx context.Context, kind ingest.Kind) error {
	buf, ok := sa.buffers[kind]
	if !ok || buf.batch.Len() == 0 {
		delete(sa.buffers, kind)
		return nil
	}

	log.Info().
		Str("pipeline", sa.name).
		Str("kind", string(kind)).
		Int("files", buf.files).
		Int("rows", buf.batch.Len()).
		Msg("Flushing buffered rows")

	if err := sa.flush(ctx, buf.batch); err != nil {
		return fmt.Errorf("failed to flush %s rows: %w", kind, err)
	}
	sa.flushed += buf.batch.Len()
	delete(sa.buffers, kind)
	return nil
}

func merge(dst, src *ingest.Batch) {
	dst.Sales = append(dst.Sales, src.Sales...)
	dst.Receipts = append(dst.Receipts, src.Receipts...)
	dst.Stock = append(dst.Stock, src.Stock...)
	dst.Rows += src.Rows
	dst.Skipped += src.Skipped
}
