package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/service"
)

var ErrFolderNotFound = errors.New("folder not found")

// IngestService imports a single Drive file into the history tables.
type IngestService struct {
	source   FileSource
	importer *service.ImportService
}

func NewIngestService(source FileSource, importer *service.ImportService) *IngestService {
	return &IngestService{
		source:   source,
		importer: importer,
	}
}

// IngestFile downloads fileID and imports it. An empty kind is inferred from
// the Drive file name.
func (s *IngestService) IngestFile(ctx context.Context, fileID string, kind ingest.Kind) (*domain.ImportResult, error) {
	file, err := s.source.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !ingest.IsSupported(file.Name) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrUnsupported, file.Name)
	}

	if kind == "" {
		if kind, err = ingest.DetectKind(file.Name); err != nil {
			return nil, err
		}
	}

	// xlsx needs the whole archive, so both formats are buffered
	var buf bytes.Buffer
	if err := s.source.DownloadFile(ctx, fileID, &buf); err != nil {
		return nil, err
	}

	return s.importer.Import(ctx, &buf, file.Name, kind)
}
