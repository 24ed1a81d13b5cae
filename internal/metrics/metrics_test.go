package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveProduct("ok", time.Millisecond)
		r.ObserveBatch("completed", 3)
		r.ObserveSimulation("ok")
		r.AddImportedRows("sales", 10)
		r.ObservePipelineFile("nightly", "completed")
	})
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveProduct("ok", 20*time.Millisecond)
	r.ObserveProduct("ok", 0)
	r.ObserveProduct("insufficient_history", 0)
	r.AddImportedRows("sales", 12)
	r.AddImportedRows("sales", 0)
	r.AddImportedRows("receipts", 3)
	r.ObservePipelineFile("nightly", "completed")
	r.ObservePipelineFile("nightly", "failed")
	r.ObservePipelineFile("nightly", "completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.products.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.products.WithLabelValues("insufficient_history")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.importedRows.WithLabelValues("sales")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.importedRows.WithLabelValues("receipts")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.files.WithLabelValues("nightly", "completed")))

	n, err := testutil.GatherAndCount(reg, "stockzero_forecast_fit_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
