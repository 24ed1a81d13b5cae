package drive

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	source        FileSource
	ingestService *IngestService
}

func NewHandler(source FileSource, ingestService *IngestService) *Handler {
	return &Handler{
		source:        source,
		ingestService: ingestService,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods("GET")
	router.HandleFunc("/api/drive/ingest", h.IngestFile).Methods("POST")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("drive: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")

	if folderPath := query.Get("path"); folderPath != "" {
		var err error
		folderID, err = h.source.FindFolderByPath(r.Context(), folderPath)
		if errors.Is(err, ErrFolderNotFound) {
			writeError(w, http.StatusNotFound, "folder not found", err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve folder", err)
			return
		}
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files", err)
		return
	}
	if files == nil {
		files = make([]*File, 0)
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "fileId parameter is required", nil)
		return
	}

	file, err := h.source.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found", err)
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename="+file.Name)

	if err := h.source.DownloadFile(r.Context(), fileID, w); err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("drive: download failed")
	}
}

// IngestFile handles POST /api/drive/ingest?fileId=&kind=sales|receipts|stock
func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fileID := query.Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "fileId parameter is required", nil)
		return
	}

	var kind ingest.Kind
	if raw := query.Get("kind"); raw != "" {
		var err error
		if kind, err = ingest.ParseKind(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid kind", err)
			return
		}
	}

	result, err := h.ingestService.IngestFile(r.Context(), fileID, kind)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrUnknownKind) || errors.Is(err, ingest.ErrUnsupported) || errors.Is(err, ingest.ErrMissingColumn) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "ingestion failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"result": result,
	})
}
