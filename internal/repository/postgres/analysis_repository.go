package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type analysisRepository struct {
	db *DB
}

func NewAnalysisRepository(db *DB) repository.AnalysisRepository {
	return &analysisRepository{db: db}
}

// metricsRecord adds the array column sqlx cannot map onto []float64.
type metricsRecord struct {
	domain.ProductMetricsRow
	Forecast pq.Float64Array `db:"forecast_values"`
}

func newMetricsRecord(row domain.ProductMetricsRow) metricsRecord {
	forecast := pq.Float64Array(row.ForecastValues)
	if forecast == nil {
		forecast = pq.Float64Array{}
	}
	return metricsRecord{ProductMetricsRow: row, Forecast: forecast}
}

func (r metricsRecord) row() domain.ProductMetricsRow {
	row := r.ProductMetricsRow
	row.ForecastValues = []float64(r.Forecast)
	return row
}

const runColumns = `
	id, source, status, lead_time_days, safety_stock_days, seasonal_period_days,
	product_count, error_count, started_at, completed_at, error_message
`

func (r *analysisRepository) CreateRun(ctx context.Context, run *domain.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (` + runColumns + `)
		VALUES (
			:id, :source, :status, :lead_time_days, :safety_stock_days, :seasonal_period_days,
			:product_count, :error_count, :started_at, :completed_at, :error_message
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	return nil
}

// SaveReport upserts the run row and replaces its metrics in one transaction.
func (r *analysisRepository) SaveReport(ctx context.Context, report *domain.AnalysisReport) error {
	upsertRun := `
		INSERT INTO analysis_runs (` + runColumns + `)
		VALUES (
			:id, :source, :status, :lead_time_days, :safety_stock_days, :seasonal_period_days,
			:product_count, :error_count, :started_at, :completed_at, :error_message
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			product_count = EXCLUDED.product_count,
			error_count = EXCLUDED.error_count,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`

	insertMetrics := `
		INSERT INTO product_metrics (
			run_id, product, reorder_point, order_quantity, avg_daily_forecast,
			lead_time_demand, safety_stock, historical_days, total_volume_sold,
			abc_class, error_kind, error, forecast_values, forecast_start
		) VALUES (
			:run_id, :product, :reorder_point, :order_quantity, :avg_daily_forecast,
			:lead_time_demand, :safety_stock, :historical_days, :total_volume_sold,
			:abc_class, :error_kind, :error, :forecast_values, :forecast_start
		)
	`

	runID := report.Run.ID.String()
	rows := make([]metricsRecord, len(report.Metrics))
	for i, m := range report.Metrics {
		rows[i] = newMetricsRecord(m.Row(runID))
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertRun, report.Run); err != nil {
			return fmt.Errorf("failed to save analysis run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM product_metrics WHERE run_id = $1`, report.Run.ID); err != nil {
			return fmt.Errorf("failed to clear product metrics: %w", err)
		}

		for _, c := range chunks(len(rows), insertChunkSize) {
			if _, err := tx.NamedExecContext(ctx, insertMetrics, rows[c[0]:c[1]]); err != nil {
				return fmt.Errorf("failed to insert product metrics: %w", err)
			}
		}

		return nil
	})
}

func (r *analysisRepository) FailRun(ctx context.Context, runID uuid.UUID, cause error) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3
	`

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := r.db.ExecContext(ctx, query, domain.RunStatusFailed, msg, runID); err != nil {
		return fmt.Errorf("failed to mark analysis run as failed: %w", err)
	}

	return nil
}

func (r *analysisRepository) LatestReport(ctx context.Context) (*domain.AnalysisReport, error) {
	query := `
		SELECT ` + runColumns + `
		FROM analysis_runs
		WHERE status = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run domain.AnalysisRun
	err := sqlx.GetContext(ctx, r.db, &run, query, domain.RunStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoAnalysis
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis run: %w", err)
	}

	return r.loadReport(ctx, run)
}

func (r *analysisRepository) GetReport(ctx context.Context, runID uuid.UUID) (*domain.AnalysisReport, error) {
	query := `
		SELECT ` + runColumns + `
		FROM analysis_runs
		WHERE id = $1
	`

	var run domain.AnalysisRun
	err := sqlx.GetContext(ctx, r.db, &run, query, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoAnalysis
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}

	return r.loadReport(ctx, run)
}

func (r *analysisRepository) loadReport(ctx context.Context, run domain.AnalysisRun) (*domain.AnalysisReport, error) {
	query := `
		SELECT
			run_id, product, reorder_point, order_quantity, avg_daily_forecast,
			lead_time_demand, safety_stock, historical_days, total_volume_sold,
			abc_class, error_kind, error, forecast_values, forecast_start
		FROM product_metrics
		WHERE run_id = $1
		ORDER BY id ASC
	`

	var rows []metricsRecord
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, run.ID); err != nil {
		return nil, fmt.Errorf("failed to load product metrics: %w", err)
	}

	metrics := make([]domain.ProductMetrics, len(rows))
	for i, row := range rows {
		metrics[i] = row.row().Metrics()
	}

	return &domain.AnalysisReport{
		Run:        run,
		Metrics:    metrics,
		ABCSummary: domain.SummarizeABC(metrics),
	}, nil
}

func (r *analysisRepository) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT ` + runColumns + `
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	var runs []domain.AnalysisRun
	if err := sqlx.SelectContext(ctx, r.db, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}

	return runs, nil
}
