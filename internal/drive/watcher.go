package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/rs/zerolog/log"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	FolderPath  string
	DownloadDir string
}

// Downloader wraps a FileSource to download files from a specific folder.
type Downloader struct {
	source FileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// DownloadFolder downloads every CSV and XLSX file of the folder into
// DownloadDir and returns the local paths. Sub-folders named after a file
// kind (sales, receipts, stock) are downloaded into matching sub-directories
// so the kind can be inferred later.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}

	folderID := opts.FolderID
	if opts.FolderPath != "" {
		id, err := d.source.FindFolderByPath(ctx, opts.FolderPath)
		if err != nil {
			return nil, err
		}
		folderID = id
	}

	return d.downloadFolder(ctx, folderID, opts.DownloadDir, true)
}

func (d *Downloader) downloadFolder(ctx context.Context, folderID, dir string, descend bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if f.IsFolder() {
			if _, err := ingest.ParseKind(f.Name); err != nil || !descend {
				continue
			}
			nested, err := d.downloadFolder(ctx, f.ID, filepath.Join(dir, f.Name), false)
			if err != nil {
				return nil, err
			}
			localPaths = append(localPaths, nested...)
			continue
		}

		if !ingest.IsSupported(f.Name) {
			continue
		}

		localPath := filepath.Join(dir, filepath.Base(f.Name))
		if err := d.downloadTo(ctx, f, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	log.Info().Str("folder_id", folderID).Int("files", len(localPaths)).Msg("Downloaded Drive folder")
	return localPaths, nil
}

func (d *Downloader) downloadTo(ctx context.Context, f *File, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := d.source.DownloadFile(ctx, f.ID, out); err != nil {
		out.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return out.Close()
}
