package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/rs/zerolog/log"
)

var ErrNothingImported = errors.New("no file could be imported")

// Orchestrator fetches files from a Source, imports them through a Worker
// and runs the reorder analysis over the refreshed history.
type Orchestrator struct {
	cfg      Config
	repo     Repository
	worker   *Worker
	analysis *service.AnalysisService
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator. analysis may be nil when
// cfg.Analyze is false.
func NewOrchestrator(cfg Config, repo Repository, importer *service.ImportService, analysis *service.AnalysisService, recorder *metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		repo:     repo,
		worker:   NewWorker(cfg, repo, importer, recorder),
		analysis: analysis,
		now:      time.Now,
	}
}

// Run executes one pipeline run end to end.
func (o *Orchestrator) Run(ctx context.Context, src Source) (*Result, error) {
	run := &Run{
		PipelineName: o.cfg.Name,
		Source:       src.Name(),
		Status:       StatusPending,
		StartedAt:    o.now().UTC(),
	}
	if err := o.repo.CreatePipelineRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}
	result := &Result{Run: run}

	dir := filepath.Join(o.cfg.DownloadDir, strconv.FormatInt(run.ID, 10))
	files, err := src.Fetch(ctx, dir)
	if err != nil {
		return result, o.fail(ctx, run, fmt.Errorf("failed to fetch files from %s: %w", src.Name(), err))
	}

	jobs, err := o.worker.ProcessBatch(ctx, run, files)
	result.Jobs = jobs
	if err != nil {
		return result, o.fail(ctx, run, err)
	}

	if len(files) > 0 && run.ProcessedFiles == 0 {
		return result, o.fail(ctx, run, ErrNothingImported)
	}

	if run.ProcessedFiles > 0 {
		if err := o.analyze(ctx, result); err != nil {
			return result, o.fail(ctx, run, err)
		}
	}

	if err := o.complete(ctx, run, result.Report); err != nil {
		return result, err
	}
	return result, nil
}

// RetryFailed re-imports failed files of earlier runs and, when any file
// recovers, analyzes once more and links every touched run to the new report.
func (o *Orchestrator) RetryFailed(ctx context.Context) ([]*Result, error) {
	runs, err := o.worker.RetryFailed(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	var report *domain.AnalysisReport
	var outputs []string
	for _, run := range runs {
		if run.ProcessedFiles > 0 && report == nil {
			shared := &Result{Run: run}
			if err := o.analyze(ctx, shared); err != nil {
				return nil, err
			}
			report, outputs = shared.Report, shared.Outputs
		}
	}

	results := make([]*Result, 0, len(runs))
	for _, run := range runs {
		jobs, err := o.repo.GetFileJobs(ctx, run.ID)
		if err != nil {
			return results, err
		}
		if run.ProcessedFiles > 0 {
			if err := o.complete(ctx, run, report); err != nil {
				return results, err
			}
		}
		results = append(results, &Result{Run: run, Jobs: jobs, Report: report, Outputs: outputs})
	}
	return results, nil
}

func (o *Orchestrator) analyze(ctx context.Context, result *Result) error {
	if !o.cfg.Analyze || o.analysis == nil {
		return nil
	}

	report, err := o.analysis.Run(ctx, o.cfg.Params, "pipeline:"+o.cfg.Name)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	result.Report = report

	outputs, err := o.writeOutputs(report)
	if err != nil {
		return err
	}
	result.Outputs = outputs
	return nil
}

// writeOutputs renders the report once per configured format into OutputDir.
func (o *Orchestrator) writeOutputs(report *domain.AnalysisReport) ([]string, error) {
	if o.cfg.OutputDir == "" || len(o.cfg.ExportFormats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	paths := make([]string, 0, len(o.cfg.ExportFormats))
	for _, format := range o.cfg.ExportFormats {
		body, err := service.RenderMetrics(report, format)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(o.cfg.OutputDir, fmt.Sprintf("reorder_%s.%s", report.Run.ID, format))
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (o *Orchestrator) complete(ctx context.Context, run *Run, report *domain.AnalysisReport) error {
	now := o.now().UTC()
	run.Status = StatusCompleted
	run.CompletedAt = &now
	run.ErrorMessage = ""
	if run.FailedFiles > 0 {
		run.ErrorMessage = fmt.Sprintf("%d of %d files failed", run.FailedFiles, run.TotalFiles)
	}
	if report != nil {
		id := report.Run.ID
		run.AnalysisRunID = &id
	}

	if err := o.repo.UpdatePipelineRun(ctx, run); err != nil {
		return fmt.Errorf("failed to complete pipeline run: %w", err)
	}

	log.Info().
		Str("pipeline", run.PipelineName).
		Int64("run_id", run.ID).
		Str("source", run.Source).
		Int("files", run.ProcessedFiles).
		Int("failed", run.FailedFiles).
		Int("rows", run.TotalRows).
		Msg("Pipeline run completed")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, cause error) error {
	now := o.now().UTC()
	run.Status = StatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &now

	if err := o.repo.UpdatePipelineRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Int64("run_id", run.ID).Msg("failed to mark pipeline run as failed")
	}
	log.Error().Err(cause).Str("pipeline", run.PipelineName).Int64("run_id", run.ID).Msg("Pipeline run failed")
	return cause
}
