package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrRunNotFound = errors.New("pipeline run not found")

// Repository persists pipeline runs and their file jobs.
type Repository interface {
	CreatePipelineRun(ctx context.Context, run *Run) error
	UpdatePipelineRun(ctx context.Context, run *Run) error
	GetPipelineRun(ctx context.Context, id int64) (*Run, error)
	ListPipelineRuns(ctx context.Context, pipelineName string, limit int) ([]Run, error)

	CreateFileJob(ctx context.Context, job *FileJob) error
	UpdateFileJob(ctx context.Context, job *FileJob) error
	GetFileJobs(ctx context.Context, runID int64) ([]*FileJob, error)
	GetFailedFileJobs(ctx context.Context, pipelineName string, maxRetries int) ([]*FileJob, error)

	// IncrementProcessedFiles adds one processed file and rows to the run counters.
	IncrementProcessedFiles(ctx context.Context, runID int64, rows int) error
	AdjustFailedFiles(ctx context.Context, runID int64, delta int) error
}

// SQLRepository handles database operations for pipeline tracking
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new pipeline repository
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const runColumns = `id, pipeline_name, source, status, total_files, processed_files,
	failed_files, total_rows, analysis_run_id, started_at, completed_at, error_message`

const jobColumns = `id, pipeline_run_id, file_path, kind, status, rows_imported,
	rows_skipped, error_message, processed_at, retry_count`

// CreatePipelineRun creates a new pipeline run record
func (r *SQLRepository) CreatePipelineRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pipeline_runs (
			pipeline_name, source, status, total_files, processed_files,
			failed_files, total_rows, started_at
		) VALUES (
			:pipeline_name, :source, :status, :total_files, :processed_files,
			:failed_files, :total_rows, :started_at
		)
		RETURNING id
	`

	rows, err := r.db.NamedQueryContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&run.ID)
	}
	return rows.Err()
}

// UpdatePipelineRun writes status, counters and the analysis link of an existing run
func (r *SQLRepository) UpdatePipelineRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = :status, total_files = :total_files, processed_files = :processed_files,
		    failed_files = :failed_files, total_rows = :total_rows,
		    analysis_run_id = :analysis_run_id, completed_at = :completed_at,
		    error_message = :error_message
		WHERE id = :id
	`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to update pipeline run %d: %w", run.ID, err)
	}
	return nil
}

// GetPipelineRun retrieves a pipeline run by ID
func (r *SQLRepository) GetPipelineRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := r.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run %d: %w", id, err)
	}
	return &run, nil
}

// ListPipelineRuns returns the most recent runs, optionally for one pipeline.
func (r *SQLRepository) ListPipelineRuns(ctx context.Context, pipelineName string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM pipeline_runs
		WHERE ($1 = '' OR pipeline_name = $1)
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	runs := []Run{}
	if err := r.db.SelectContext(ctx, &runs, query, pipelineName, limit); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	return runs, nil
}

// CreateFileJob creates a new file job record
func (r *SQLRepository) CreateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		INSERT INTO pipeline_file_jobs (pipeline_run_id, file_path, kind, status, retry_count)
		VALUES (:pipeline_run_id, :file_path, :kind, :status, :retry_count)
		RETURNING id
	`

	rows, err := r.db.NamedQueryContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to create file job: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&job.ID)
	}
	return rows.Err()
}

// UpdateFileJob updates a file job's status and outcome
func (r *SQLRepository) UpdateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		UPDATE pipeline_file_jobs
		SET kind = :kind, status = :status, rows_imported = :rows_imported,
		    rows_skipped = :rows_skipped, error_message = :error_message,
		    processed_at = :processed_at, retry_count = :retry_count
		WHERE id = :id
	`

	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to update file job %d: %w", job.ID, err)
	}
	return nil
}

// GetFileJobs retrieves all jobs of a run in creation order
func (r *SQLRepository) GetFileJobs(ctx context.Context, runID int64) ([]*FileJob, error) {
	jobs := []*FileJob{}
	query := `SELECT ` + jobColumns + ` FROM pipeline_file_jobs WHERE pipeline_run_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &jobs, query, runID); err != nil {
		return nil, fmt.Errorf("failed to get file jobs: %w", err)
	}
	return jobs, nil
}

// GetFailedFileJobs retrieves failed jobs that can still be retried
func (r *SQLRepository) GetFailedFileJobs(ctx context.Context, pipelineName string, maxRetries int) ([]*FileJob, error) {
	query := `
		SELECT j.id, j.pipeline_run_id, j.file_path, j.kind, j.status, j.rows_imported,
		       j.rows_skipped, j.error_message, j.processed_at, j.retry_count
		FROM pipeline_file_jobs j
		JOIN pipeline_runs r ON r.id = j.pipeline_run_id
		WHERE r.pipeline_name = $1 AND j.status = $2 AND j.retry_count < $3
		ORDER BY j.pipeline_run_id, j.id
	`

	jobs := []*FileJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, pipelineName, FileStatusFailed, maxRetries); err != nil {
		return nil, fmt.Errorf("failed to get failed jobs: %w", err)
	}
	return jobs, nil
}

// IncrementProcessedFiles increments the processed files counter
func (r *SQLRepository) IncrementProcessedFiles(ctx context.Context, runID int64, rows int) error {
	query := `
		UPDATE pipeline_runs
		SET processed_files = processed_files + 1, total_rows = total_rows + $1
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, rows, runID)
	return err
}

// AdjustFailedFiles moves the failed files counter by delta
func (r *SQLRepository) AdjustFailedFiles(ctx context.Context, runID int64, delta int) error {
	query := `UPDATE pipeline_runs SET failed_files = GREATEST(failed_files + $1, 0) WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, delta, runID)
	return err
}
