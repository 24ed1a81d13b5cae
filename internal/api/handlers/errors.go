package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var noData *domain.NoDataError
	switch {
	case errors.Is(err, domain.ErrInvalidParams),
		errors.Is(err, ingest.ErrUnknownKind),
		errors.Is(err, ingest.ErrUnsupported),
		errors.Is(err, ingest.ErrMissingColumn):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNothingImported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrNoAnalysis),
		errors.Is(err, pipeline.ErrRunNotFound),
		errors.As(err, &noData):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}
