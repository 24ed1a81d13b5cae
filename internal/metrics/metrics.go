package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockzero"

// Recorder groups the collectors of the reorder engine. A nil *Recorder is
// valid and records nothing, so core packages can be used without a registry.
type Recorder struct {
	products     *prometheus.CounterVec
	fitDuration  prometheus.Histogram
	batches      *prometheus.CounterVec
	batchSize    prometheus.Histogram
	simulations  *prometheus.CounterVec
	importedRows *prometheus.CounterVec
	files        *prometheus.CounterVec
}

// New builds a Recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_analyzed_total",
			Help:      "Products analyzed, by outcome.",
		}, []string{"outcome"}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_fit_seconds",
			Help:      "Duration of a single seasonal model fit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_batches_total",
			Help:      "Batch analyses, by status.",
		}, []string{"status"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_batch_products",
			Help:      "Number of products per batch analysis.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Inventory simulations, by outcome.",
		}, []string{"outcome"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_rows_total",
			Help:      "Rows imported from source files, by kind.",
		}, []string{"kind"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_files_total",
			Help:      "Files processed by ingestion pipelines, by status.",
		}, []string{"pipeline", "status"}),
	}

	if reg != nil {
		reg.MustRegister(r.products, r.fitDuration, r.batches, r.batchSize, r.simulations, r.importedRows, r.files)
	}
	return r
}

// ObserveProduct records the outcome of one product ("ok" or an error kind).
func (r *Recorder) ObserveProduct(outcome string, fit time.Duration) {
	if r == nil {
		return
	}
	r.products.WithLabelValues(outcome).Inc()
	if fit > 0 {
		r.fitDuration.Observe(fit.Seconds())
	}
}

func (r *Recorder) ObserveBatch(status string, products int) {
	if r == nil {
		return
	}
	r.batches.WithLabelValues(status).Inc()
	r.batchSize.Observe(float64(products))
}

func (r *Recorder) ObserveSimulation(outcome string) {
	if r == nil {
		return
	}
	r.simulations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) AddImportedRows(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.importedRows.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) ObservePipelineFile(pipeline, status string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(pipeline, status).Inc()
}
