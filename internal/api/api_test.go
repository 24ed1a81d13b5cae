package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/api/middleware"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/forecast"
	"github.com/andresuchdata/stockzero/backend-go/internal/metrics"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/andresuchdata/stockzero/backend-go/internal/reorder"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/memory"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/andresuchdata/stockzero/backend-go/internal/simulation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testServer struct {
	router   *gin.Engine
	repo     *memory.Repository
	inboxDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	repo := memory.New()
	store := repo.Store()

	analyzer := reorder.NewAnalyzer(forecast.NewForecaster(5*time.Second), 2, recorder)
	analysisService := service.NewAnalysisService(store, analyzer, nil, nil, domain.DefaultAnalysisParams())
	importService := service.NewImportService(store, nil, recorder)

	inbox := t.TempDir()
	pipelineCfg := pipeline.DefaultConfig("inbox")
	pipelineCfg.DownloadDir = t.TempDir()
	pipelineCfg.OutputDir = t.TempDir()
	pipelineRuns := pipeline.NewMemoryRepository()

	services := &Services{
		ImportService:     importService,
		AnalysisService:   analysisService,
		SimulationService: service.NewSimulationService(store, analysisService, analyzer, simulation.NewSimulator(recorder), nil, 14),
		InsightsService:   service.NewInsightsService(store, analysisService, nil),
		Pipeline:          pipeline.NewOrchestrator(pipelineCfg, pipelineRuns, importService, analysisService, recorder),
		PipelineRuns:      pipelineRuns,
		PipelineSources:   map[string]pipeline.Source{"local": pipeline.LocalSource{Dir: inbox}},
	}

	return &testServer{
		router:   NewRouter(services, []string{"*"}, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		repo:     repo,
		inboxDir: inbox,
	}
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	var sales []domain.SalesRecord
	for i := 0; i < 28; i++ {
		sales = append(sales,
			domain.SalesRecord{Date: day0.AddDate(0, 0, i), Product: "a", Quantity: 10},
			domain.SalesRecord{Date: day0.AddDate(0, 0, i), Product: "b", Quantity: 3},
		)
	}
	_, err := s.repo.InsertSales(context.Background(), sales)
	require.NoError(t, err)
	_, err = s.repo.UpsertStock(context.Background(), []domain.ProductStock{{Product: "a", CurrentStock: 40}})
	require.NoError(t, err)
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")

	w := s.do(req)
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestUploadSales(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "file", "sales.csv", "fecha,producto,cantidad_vendida\n2024-01-01,a,5\n2024-01-02,b,2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Count   int                   `json:"count"`
		Results []domain.ImportResult `json:"results"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Results[0].Rows)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "file", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts/upload", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	body, contentType = multipartBody(t, "file", "receipts.csv", "date,quantity\n2024-01-01,3\n")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/receipts/upload", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/stock/upload", nil)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestAnalysisLifecycle(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/analysis/latest").Code)

	s.seed(t)
	w := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var report domain.AnalysisReport
	decode(t, w, &report)
	assert.Equal(t, "api", report.Run.Source)
	assert.Len(t, report.Metrics, 2)

	w = s.get("/api/v1/analysis/latest")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.get("/api/v1/analysis/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Runs []domain.AnalysisRun `json:"runs"`
	}
	decode(t, w, &runs)
	require.Len(t, runs.Runs, 1)

	w = s.get("/api/v1/analysis/runs/" + report.Run.ID.String())
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.get("/api/v1/analysis/runs/" + report.Run.ID.String() + "/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "product,reorder_point")

	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/analysis/runs/not-a-uuid").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/analysis/runs/"+report.Run.ID.String()+"/export?format=pdf").Code)

	w = s.get("/api/v1/products/a/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var m domain.ProductMetrics
	decode(t, w, &m)
	assert.True(t, m.OK())

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/products/zzz/metrics").Code)
}

func TestRunAnalysisKeepsDefaultsForMissingFields(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	cases := []struct {
		name       string
		body       string
		leadTime   int
		safetyDays int
	}{
		{name: "no body", body: "", leadTime: domain.DefaultLeadTimeDays, safetyDays: domain.DefaultSafetyStockDays},
		{name: "empty object", body: `{}`, leadTime: domain.DefaultLeadTimeDays, safetyDays: domain.DefaultSafetyStockDays},
		{name: "lead time only", body: `{"lead_time_days": 5}`, leadTime: 5, safetyDays: domain.DefaultSafetyStockDays},
		{name: "explicit zero safety stock", body: `{"safety_stock_days": 0}`, leadTime: domain.DefaultLeadTimeDays, safetyDays: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := s.do(req)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			var report domain.AnalysisReport
			decode(t, w, &report)
			assert.Equal(t, tc.leadTime, report.Run.LeadTimeDays)
			assert.Equal(t, tc.safetyDays, report.Run.SafetyStockDays)

			for _, m := range report.Metrics {
				if m.Product != "a" {
					continue
				}
				require.True(t, m.OK())
				assert.InDelta(t, m.LeadTimeDemand()+m.AvgDailyForecast()*float64(tc.safetyDays), m.ReorderPoint(), 0.02)
			}
		})
	}
}

func TestRunAnalysisRejectsInvalidParams(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", bytes.NewBufferString(`{"seasonal_period_days": 1}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestSimulationEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.get("/api/v1/products/a/simulation?today=2024-01-28&horizon_days=10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var trace domain.SimulationTrace
	decode(t, w, &trace)
	assert.Equal(t, "a", trace.Product)
	assert.Equal(t, 40.0, trace.Summary.CurrentStock)

	w = s.get("/api/v1/products/a/simulation?today=2024-01-28&current_stock=7")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &trace)
	assert.Equal(t, 7.0, trace.Summary.CurrentStock)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/products/ghost/simulation").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/products/a/simulation?current_stock=-1").Code)
	for _, v := range []string{"Inf", "-Inf", "NaN", "1e400"} {
		assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/products/a/simulation?current_stock="+v).Code, v)
	}
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/products/a/simulation?today=28-01-2024").Code)
}

func TestInsightsEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.get("/api/v1/insights/dashboard?period_days=7&product=a,b")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dashboard domain.Dashboard
	decode(t, w, &dashboard)
	assert.Equal(t, 7, dashboard.Trends.PeriodDays)
	assert.Equal(t, 1, dashboard.Inventory.TotalProducts)

	w = s.get("/api/v1/insights/dashboard?current_stock[a]=0&current_stock[b]=90")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &dashboard)
	assert.Equal(t, 2, dashboard.Inventory.TotalProducts)
	assert.Equal(t, 1, dashboard.Inventory.ProductsOutOfStock)

	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/insights/dashboard?from=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/insights/dashboard?current_stock[a]=lots").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/insights/dashboard?current_stock[a]=Inf").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/insights/dashboard?current_stock[a]=NaN").Code)

	w = s.get("/api/v1/insights/recommendations")
	require.Equal(t, http.StatusOK, w.Code)
	var recs struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	decode(t, w, &recs)
	assert.NotEmpty(t, recs.Recommendations)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, allowAll := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)
	assert.False(t, allowAll)

	_, allowAll = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, allowAll)
}

func TestPipelineEndpoints(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	body.WriteString("date,product,quantity_sold\n")
	for i := 0; i < 21; i++ {
		body.WriteString(day0.AddDate(0, 0, i).Format("2006-01-02") + ",a,4\n")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(s.inboxDir, "sales"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.inboxDir, "sales", "jan.csv"), body.Bytes(), 0o644))

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run?source=ftp", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run", nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Run      pipeline.Run           `json:"run"`
		Analysis *domain.AnalysisReport `json:"analysis"`
		Outputs  []string               `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, pipeline.StatusCompleted, created.Run.Status)
	assert.Equal(t, 21, created.Run.TotalRows)
	require.NotNil(t, created.Analysis)
	assert.Len(t, created.Outputs, 1)

	w = s.get("/api/v1/pipeline/runs?name=inbox")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Runs []pipeline.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Runs, 1)

	w = s.get(fmt.Sprintf("/api/v1/pipeline/runs/%d", created.Run.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jan.csv")

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/pipeline/runs/999").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/pipeline/runs/abc").Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/retry", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}
