package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/google/uuid"
)

// Source collects the files of one pipeline run into a local directory.
type Source interface {
	// Name identifies the source in run records, e.g. "local" or "s3".
	Name() string

	// Fetch returns local paths of every supported file. Remote sources
	// download into dir; local sources may ignore it.
	Fetch(ctx context.Context, dir string) ([]string, error)
}

// Config holds configuration for a pipeline instance
type Config struct {
	Name          string
	BatchSize     int // Parsed files buffered per kind before flushing
	BatchRows     int // Rows buffered per kind before flushing
	WorkerCount   int // Number of concurrent workers
	DownloadDir   string
	OutputDir     string // Directory for the reorder report of each run
	RetryAttempts int    // Attempts per file across RetryFailed calls
	Analyze       bool   // Run the reorder analysis once files are stored
	Params        domain.AnalysisParams
	ExportFormats []service.ExportFormat
}

// DefaultConfig returns sensible defaults
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		BatchSize:     5,
		BatchRows:     50000,
		WorkerCount:   4,
		DownloadDir:   "data/downloads/" + name,
		OutputDir:     "data/output/" + name,
		RetryAttempts: 3,
		Analyze:       true,
		ExportFormats: []service.ExportFormat{service.FormatCSV},
	}
}

// NewConfig applies the application settings on top of DefaultConfig.
func NewConfig(name string, cfg *config.Config) Config {
	c := DefaultConfig(name)
	if cfg.Pipeline.Workers > 0 {
		c.WorkerCount = cfg.Pipeline.Workers
	}
	if cfg.Pipeline.BatchSize > 0 {
		c.BatchSize = cfg.Pipeline.BatchSize
	}
	if cfg.Pipeline.BatchRows > 0 {
		c.BatchRows = cfg.Pipeline.BatchRows
	}
	if cfg.Pipeline.RetryAttempts > 0 {
		c.RetryAttempts = cfg.Pipeline.RetryAttempts
	}
	if cfg.App.UploadDir != "" {
		c.DownloadDir = filepath.Join(cfg.App.UploadDir, "pipeline", name)
	}
	if cfg.App.DataDir != "" {
		c.OutputDir = filepath.Join(cfg.App.DataDir, name)
	}
	c.Params = cfg.Forecast.Params()
	return c
}

// Status represents the current state of a pipeline run
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// FileJobStatus represents the state of a single file processing job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// Run tracks a single execution of a pipeline.
type Run struct {
	ID             int64      `db:"id" json:"id"`
	PipelineName   string     `db:"pipeline_name" json:"pipeline_name"`
	Source         string     `db:"source" json:"source"`
	Status         Status     `db:"status" json:"status"`
	TotalFiles     int        `db:"total_files" json:"total_files"`
	ProcessedFiles int        `db:"processed_files" json:"processed_files"`
	FailedFiles    int        `db:"failed_files" json:"failed_files"`
	TotalRows      int        `db:"total_rows" json:"total_rows"`
	AnalysisRunID  *uuid.UUID `db:"analysis_run_id" json:"analysis_run_id,omitempty"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage   string     `db:"error_message" json:"error_message,omitempty"`
}

// FileJob tracks the import of a single file within a run.
type FileJob struct {
	ID            int64         `db:"id" json:"id"`
	PipelineRunID int64         `db:"pipeline_run_id" json:"pipeline_run_id"`
	FilePath      string        `db:"file_path" json:"file_path"`
	Kind          string        `db:"kind" json:"kind"`
	Status        FileJobStatus `db:"status" json:"status"`
	RowsImported  int           `db:"rows_imported" json:"rows_imported"`
	RowsSkipped   int           `db:"rows_skipped" json:"rows_skipped"`
	ErrorMessage  string        `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt   *time.Time    `db:"processed_at" json:"processed_at,omitempty"`
	RetryCount    int           `db:"retry_count" json:"retry_count"`
}

// Result is what a finished run leaves behind.
type Result struct {
	Run     *Run
	Jobs    []*FileJob
	Report  *domain.AnalysisReport
	Outputs []string
}
