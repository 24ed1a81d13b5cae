package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/andresuchdata/stockzero/backend-go/internal/storage"
	"github.com/andresuchdata/stockzero/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

func runImport(c *cli.Context) error {
	path := c.String("file")

	var (
		kind ingest.Kind
		err  error
	)
	if k := c.String("kind"); k != "" {
		kind, err = ingest.ParseKind(k)
	} else {
		kind, err = ingest.DetectKind(path)
	}
	if err != nil {
		return err
	}

	importer := service.NewImportService(postgres.NewStore(dbFrom(c)), nil, nil)
	result, err := importer.ImportFile(c.Context, path, kind)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("file", result.Filename).
		Str("kind", result.Kind).
		Int("rows", result.Rows).
		Int("products", result.Products).
		Int("skipped", result.SkippedRows).
		Msg("Import finished")
	return nil
}

func runPipeline(c *cli.Context, cfg *config.Config) error {
	db := dbFrom(c)
	store := postgres.NewStore(db)

	pcfg := pipeline.NewConfig(c.String("name"), cfg)
	pcfg.Analyze = !c.Bool("skip-analysis")
	pcfg.ExportFormats = pcfg.ExportFormats[:0]
	for _, f := range c.StringSlice("format") {
		format, err := service.ParseExportFormat(f)
		if err != nil {
			return err
		}
		pcfg.ExportFormats = append(pcfg.ExportFormats, format)
	}

	var objects storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return err
		}
		objects = s3
	}

	analyzer := reorder.NewAnalyzer(forecast.NewForecaster(cfg.Forecast.FitTimeout()), cfg.Forecast.Workers, nil)
	analysis := service.NewAnalysisService(store, analyzer, nil, objects, cfg.Forecast.Params())
	importer := service.NewImportService(store, nil, nil)
	orchestrator := pipeline.NewOrchestrator(pcfg, pipeline.NewSQLRepository(db.DB), importer, analysis, nil)

	if c.Bool("retry") {
		results, err := orchestrator.RetryFailed(c.Context)
		if err != nil {
			return err
		}
		for _, r := range results {
			printRun(r)
		}
		return nil
	}

	if dir := c.String("dir"); dir != "" {
		cfg.Pipeline.InboxDir = dir
	}
	sources := pipeline.BuildSources(c.Context, cfg, objects)
	src, ok := sources[c.String("source")]
	if !ok {
		return fmt.Errorf("source %q is not configured", c.String("source"))
	}

	start := time.Now()
	result, err := orchestrator.Run(c.Context, src)
	if result != nil {
		printRun(result)
	}
	if err != nil {
		return err
	}
	logger.Log.Info().Dur("elapsed", time.Since(start)).Msg("Pipeline finished")
	return nil
}

func printRun(r *pipeline.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "run %d\t%s\tfiles %d/%d\trows %d\n",
		r.Run.ID, r.Run.Status, r.Run.ProcessedFiles, r.Run.TotalFiles, r.Run.TotalRows)
	for _, job := range r.Jobs {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d rows\t%s\n", job.FilePath, job.Kind, job.Status, job.RowsImported, job.ErrorMessage)
	}
	if r.Report != nil {
		fmt.Fprintf(w, "analysis %s\t%d products\t%d errors\n", r.Report.Run.ID, r.Report.Run.ProductCount, r.Report.Run.ErrorCount)
	}
	for _, path := range r.Outputs {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
}

func listRuns(c *cli.Context) error {
	runs, err := pipeline.NewSQLRepository(dbFrom(c).DB).ListPipelineRuns(c.Context, c.String("name"), c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tPIPELINE\tSOURCE\tSTATUS\tFILES\tFAILED\tROWS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			r.ID, r.PipelineName, r.Source, r.Status, r.ProcessedFiles, r.TotalFiles,
			r.FailedFiles, r.TotalRows, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}
