package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/rs/zerolog/log"
)

// errFlush marks failures that lose rows of other files too.
var errFlush = errors.New("failed to store buffered rows")

// Worker imports the files of a pipeline run
type Worker struct {
	config   Config
	repo     Repository
	importer *service.ImportService
	recorder *metrics.Recorder
	now      func() time.Time
}

// NewWorker creates a new pipeline worker
func NewWorker(config Config, repo Repository, importer *service.ImportService, recorder *metrics.Recorder) *Worker {
	return &Worker{
		config:   config,
		repo:     repo,
		importer: importer,
		recorder: recorder,
		now:      time.Now,
	}
}

func (w *Worker) newAggregator() *StreamingAggregator {
	return NewStreamingAggregator(w.config, func(ctx context.Context, batch *ingest.Batch) error {
		_, err := w.importer.Store(ctx, w.config.Name+"/"+string(batch.Kind), batch)
		return err
	})
}

// ProcessBatch creates a job per file, imports them concurrently and
// refreshes run from the stored counters. A file that cannot be read fails
// its own job only; the batch fails when buffered rows cannot be stored.
func (w *Worker) ProcessBatch(ctx context.Context, run *Run, files []string) ([]*FileJob, error) {
	log.Info().
		Str("pipeline", w.config.Name).
		Int64("run_id", run.ID).
		Int("files", len(files)).
		Msg("Starting batch processing")

	jobs := make([]*FileJob, len(files))
	for i, file := range files {
		job := &FileJob{
			PipelineRunID: run.ID,
			FilePath:      file,
			Status:        FileStatusQueued,
		}
		if kind, err := ingest.DetectKind(file); err == nil {
			job.Kind = string(kind)
		}
		if err := w.repo.CreateFileJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create file job: %w", err)
		}
		jobs[i] = job
	}

	run.Status = StatusProcessing
	run.TotalFiles = len(files)
	if err := w.repo.UpdatePipelineRun(ctx, run); err != nil {
		return jobs, fmt.Errorf("failed to update pipeline run: %w", err)
	}

	aggregator := w.newAggregator()
	if err := w.processFilesParallel(ctx, run, aggregator, jobs); err != nil {
		return jobs, err
	}
	if err := aggregator.Finalize(ctx); err != nil {
		return jobs, fmt.Errorf("failed to finalize aggregation: %w", err)
	}

	if err := w.refresh(ctx, run); err != nil {
		return jobs, err
	}

	log.Info().
		Str("pipeline", w.config.Name).
		Int64("run_id", run.ID).
		Int("processed", run.ProcessedFiles).
		Int("failed", run.FailedFiles).
		Int("rows", run.TotalRows).
		Msg("Batch processing completed")

	return jobs, nil
}

func (w *Worker) refresh(ctx context.Context, run *Run) error {
	stored, err := w.repo.GetPipelineRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to reload pipeline run: %w", err)
	}
	run.ProcessedFiles = stored.ProcessedFiles
	run.FailedFiles = stored.FailedFiles
	run.TotalRows = stored.TotalRows
	return nil
}

// processFilesParallel processes files using a worker pool
func (w *Worker) processFilesParallel(ctx context.Context, run *Run, aggregator *StreamingAggregator, jobs []*FileJob) error {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	jobChan := make(chan *FileJob, len(jobs))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		flushErr error
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if err := w.processFile(ctx, run, aggregator, job); err != nil {
					if errors.Is(err, errFlush) {
						mu.Lock()
						if flushErr == nil {
							flushErr = err
						}
						mu.Unlock()
					}
					log.Warn().
						Err(err).
						Str("pipeline", w.config.Name).
						Int("worker", workerID).
						Str("file", job.FilePath).
						Msg("File failed")
				}
			}
		}(i)
	}

	var cancelled error
enqueue:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break enqueue
		case jobChan <- job:
		}
	}
	close(jobChan)

	wg.Wait()
	if cancelled != nil {
		return cancelled
	}
	if flushErr != nil {
		return flushErr
	}
	return ctx.Err()
}

// processFile parses one file into the aggregator buffer
func (w *Worker) processFile(ctx context.Context, run *Run, aggregator *StreamingAggregator, job *FileJob) error {
	startTime := w.now()
	retrying := job.Status == FileStatusFailed

	job.Status = FileStatusProcessing
	if err := w.repo.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if job.Kind == "" {
		kind, err := ingest.DetectKind(job.FilePath)
		if err != nil {
			return w.markJobFailed(ctx, job, retrying, err)
		}
		job.Kind = string(kind)
	}

	batch, err := ingest.ReadFile(job.FilePath, ingest.Kind(job.Kind))
	if err != nil {
		return w.markJobFailed(ctx, job, retrying, fmt.Errorf("parse failed: %w", err))
	}
	batch.SetSource(w.sourceKey(run, job))

	if err := aggregator.Add(ctx, batch); err != nil {
		return w.markJobFailed(ctx, job, retrying, fmt.Errorf("%w: %w", errFlush, err))
	}

	now := w.now()
	job.Status = FileStatusCompleted
	job.RowsImported = batch.Len()
	job.RowsSkipped = batch.Skipped
	job.ErrorMessage = ""
	job.ProcessedAt = &now
	if err := w.repo.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if err := w.repo.IncrementProcessedFiles(ctx, run.ID, batch.Len()); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to increment processed files")
	}
	if retrying {
		if err := w.repo.AdjustFailedFiles(ctx, run.ID, -1); err != nil {
			log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to adjust failed files")
		}
	}
	w.recorder.ObservePipelineFile(w.config.Name, string(FileStatusCompleted))

	log.Info().
		Str("pipeline", w.config.Name).
		Str("file", job.FilePath).
		Str("kind", job.Kind).
		Int("rows", job.RowsImported).
		Int("skipped", job.RowsSkipped).
		Dur("duration", now.Sub(startTime)).
		Msg("Processed file")

	return nil
}

// sourceKey names a file independently of the run that fetched it, so a
// later run over the same files replaces their rows.
func (w *Worker) sourceKey(run *Run, job *FileJob) string {
	dir := filepath.Join(w.config.DownloadDir, strconv.FormatInt(run.ID, 10))
	rel, err := filepath.Rel(dir, job.FilePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = job.FilePath
	}
	return run.Source + ":" + filepath.ToSlash(rel)
}

// permanent errors do not go away on retry.
func permanent(err error) bool {
	return errors.Is(err, ingest.ErrUnknownKind) ||
		errors.Is(err, ingest.ErrUnsupported) ||
		errors.Is(err, ingest.ErrMissingColumn)
}

// markJobFailed marks a job as failed and counts the attempt
func (w *Worker) markJobFailed(ctx context.Context, job *FileJob, retrying bool, err error) error {
	now := w.now()
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	job.ProcessedAt = &now
	job.RetryCount++
	if permanent(err) {
		job.RetryCount = max(job.RetryCount, w.config.RetryAttempts)
	}

	if uerr := w.repo.UpdateFileJob(ctx, job); uerr != nil {
		log.Error().Err(uerr).Str("file", job.FilePath).Msg("failed to update job status")
	}
	if !retrying {
		if aerr := w.repo.AdjustFailedFiles(ctx, job.PipelineRunID, 1); aerr != nil {
			log.Warn().Err(aerr).Int64("run_id", job.PipelineRunID).Msg("failed to adjust failed files")
		}
	}
	w.recorder.ObservePipelineFile(w.config.Name, string(FileStatusFailed))

	if job.RetryCount < w.config.RetryAttempts {
		log.Info().
			Str("pipeline", w.config.Name).
			Str("file", job.FilePath).
			Msgf("Will retry (attempt %d/%d)", job.RetryCount, w.config.RetryAttempts)
	}

	return err
}

// RetryFailed re-imports failed jobs that still have attempts left and
// returns the runs it touched.
func (w *Worker) RetryFailed(ctx context.Context) ([]*Run, error) {
	jobs, err := w.repo.GetFailedFileJobs(ctx, w.config.Name, w.config.RetryAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed jobs: %w", err)
	}

	if len(jobs) == 0 {
		log.Info().Str("pipeline", w.config.Name).Msg("No failed jobs to retry")
		return nil, nil
	}

	log.Info().Str("pipeline", w.config.Name).Int("jobs", len(jobs)).Msg("Retrying failed jobs")

	var order []int64
	jobsByRun := make(map[int64][]*FileJob)
	for _, job := range jobs {
		if _, ok := jobsByRun[job.PipelineRunID]; !ok {
			order = append(order, job.PipelineRunID)
		}
		jobsByRun[job.PipelineRunID] = append(jobsByRun[job.PipelineRunID], job)
	}

	runs := make([]*Run, 0, len(order))
	for _, runID := range order {
		run, err := w.repo.GetPipelineRun(ctx, runID)
		if err != nil {
			log.Error().Err(err).Int64("run_id", runID).Msg("Failed to get run")
			continue
		}

		aggregator := w.newAggregator()
		if err := w.processFilesParallel(ctx, run, aggregator, jobsByRun[runID]); err != nil {
			return runs, err
		}
		if err := aggregator.Finalize(ctx); err != nil {
			return runs, fmt.Errorf("failed to finalize retry of run %d: %w", runID, err)
		}
		if err := w.refresh(ctx, run); err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}
