package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository"
	"github.com/andresuchdata/stockzero/backend-go/internal/repository/memory"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory Drive: folders map to children, files to content.
type fakeSource struct {
	children map[string][]*File
	content  map[string]string
	paths    map[string]string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		children: map[string][]*File{
			"root": {
				{ID: "f-sales", Name: "sales_2024.csv", MimeType: "text/csv"},
				{ID: "f-notes", Name: "notes.txt", MimeType: "text/plain"},
				{ID: "d-receipts", Name: "receipts", MimeType: folderMimeType},
				{ID: "d-archive", Name: "archive", MimeType: folderMimeType},
			},
			"d-receipts": {
				{ID: "f-recv", Name: "january.csv", MimeType: "text/csv"},
			},
			"d-archive": {
				{ID: "f-old", Name: "sales_2019.csv", MimeType: "text/csv"},
			},
		},
		content: map[string]string{
			"f-sales": "date,product,quantity\n2024-01-01,a,4\n2024-01-02,a,6\n",
			"f-recv":  "date,product,quantity\n2024-01-01,a,50\n",
			"f-notes": "hello",
			"f-old":   "date,product,quantity\n2019-01-01,a,1\n",
		},
		paths: map[string]string{"data/receipts": "d-receipts"},
	}
}

func (f *fakeSource) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}
	return f.children[folderID], nil
}

func (f *fakeSource) GetFile(ctx context.Context, fileID string) (*File, error) {
	for _, files := range f.children {
		for _, file := range files {
			if file.ID == fileID {
				return file, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown file %s", fileID)
}

func (f *fakeSource) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	body, ok := f.content[fileID]
	if !ok {
		return fmt.Errorf("unknown file %s", fileID)
	}
	_, err := io.WriteString(w, body)
	return err
}

func (f *fakeSource) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if id, ok := f.paths[path]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrFolderNotFound, path)
}

func newIngest(t *testing.T) (*IngestService, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	return NewIngestService(newFakeSource(), service.NewImportService(repo.Store(), nil, nil)), repo
}

func TestIngestFileInfersKind(t *testing.T) {
	svc, repo := newIngest(t)

	result, err := svc.IngestFile(context.Background(), "f-sales", "")
	require.NoError(t, err)
	assert.Equal(t, "sales", result.Kind)
	assert.Equal(t, 2, result.Rows)

	sales, err := repo.ListSales(context.Background(), repository.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}

func TestIngestFileExplicitKind(t *testing.T) {
	svc, repo := newIngest(t)

	_, err := svc.IngestFile(context.Background(), "f-recv", ingest.KindReceipts)
	require.NoError(t, err)

	receipts, err := repo.ListReceipts(context.Background(), repository.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, 50.0, receipts[0].Quantity)
}

func TestIngestFileErrors(t *testing.T) {
	svc, _ := newIngest(t)

	_, err := svc.IngestFile(context.Background(), "f-notes", "")
	assert.ErrorIs(t, err, ingest.ErrUnsupported)

	_, err = svc.IngestFile(context.Background(), "f-recv", "")
	assert.ErrorIs(t, err, ingest.ErrUnknownKind)

	_, err = svc.IngestFile(context.Background(), "missing", "")
	assert.Error(t, err)
}

func TestDownloadFolder(t *testing.T) {
	dir := t.TempDir()

	paths, err := NewDownloader(newFakeSource()).DownloadFolder(context.Background(), DownloadOptions{DownloadDir: dir})
	require.NoError(t, err)

	rel := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	sort.Strings(rel)
	assert.Equal(t, []string{"receipts/january.csv", "sales_2024.csv"}, rel)

	body, err := os.ReadFile(filepath.Join(dir, "receipts", "january.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "2024-01-01,a,50")

	kind, err := ingest.DetectKind(filepath.Join(dir, "receipts", "january.csv"))
	require.NoError(t, err)
	assert.Equal(t, ingest.KindReceipts, kind)
}

func TestDownloadFolderByPath(t *testing.T) {
	dir := t.TempDir()
	d := NewDownloader(newFakeSource())

	paths, err := d.DownloadFolder(context.Background(), DownloadOptions{FolderPath: "data/receipts", DownloadDir: dir})
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	_, err = d.DownloadFolder(context.Background(), DownloadOptions{FolderPath: "nope", DownloadDir: dir})
	assert.ErrorIs(t, err, ErrFolderNotFound)

	_, err = d.DownloadFolder(context.Background(), DownloadOptions{})
	assert.Error(t, err)
}

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	source := newFakeSource()
	repo := memory.New()
	h := NewHandler(source, NewIngestService(source, service.NewImportService(repo.Store(), nil, nil)))
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func serve(router *mux.Router, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHandlerListFiles(t *testing.T) {
	router := newRouter(t)

	w := serve(router, http.MethodGet, "/api/drive/files")
	require.Equal(t, http.StatusOK, w.Code)
	var files []*File
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Len(t, files, 4)

	w = serve(router, http.MethodGet, "/api/drive/files?path=data/receipts")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "january.csv", files[0].Name)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/drive/files?path=missing").Code)
}

func TestHandlerDownload(t *testing.T) {
	router := newRouter(t)

	w := serve(router, http.MethodGet, "/api/drive/files/download?fileId=f-sales")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "date,product"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales_2024.csv")

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/drive/files/download").Code)
}

func TestHandlerIngest(t *testing.T) {
	router := newRouter(t)

	w := serve(router, http.MethodPost, "/api/drive/ingest?fileId=f-recv&kind=receipts")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"success"`)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/drive/ingest").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/drive/ingest?fileId=f-recv&kind=bogus").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/drive/ingest?fileId=f-notes").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodGet, "/api/drive/ingest").Code)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeQuery("O'Brien"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
