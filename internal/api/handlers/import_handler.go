package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ImportHandler struct {
	importService *service.ImportService
}

func NewImportHandler(importService *service.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

func (h *ImportHandler) UploadSales(c *gin.Context) {
	h.upload(c, ingest.KindSales)
}

func (h *ImportHandler) UploadReceipts(c *gin.Context) {
	h.upload(c, ingest.KindReceipts)
}

func (h *ImportHandler) UploadStock(c *gin.Context) {
	h.upload(c, ingest.KindStock)
}

// upload imports every file of the multipart form, under "file" or "files".
func (h *ImportHandler) upload(c *gin.Context, kind ingest.Kind) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	files := append(form.File["file"], form.File["files"]...)
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	results := make([]*domain.ImportResult, 0, len(files))
	for _, file := range files {
		if !ingest.IsSupported(file.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type", "details": file.Filename})
			return
		}

		result, err := h.importFile(c, file, kind)
		if err != nil {
			writeError(c, err, fmt.Sprintf("failed to import %s", file.Filename))
			return
		}
		results = append(results, result)
	}

	log.Info().Str("kind", string(kind)).Int("files", len(results)).Msg("Upload processed")
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

func (h *ImportHandler) importFile(c *gin.Context, file *multipart.FileHeader, kind ingest.Kind) (*domain.ImportResult, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return h.importService.Import(c.Request.Context(), src, file.Filename, kind)
}
