package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/drive"
	"github.com/andresuchdata/stockzero/backend-go/internal/ingest"
	"github.com/andresuchdata/stockzero/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// BuildSources returns every source the configuration enables. The local
// inbox is always present; s3 needs objects, drive needs credentials.
func BuildSources(ctx context.Context, cfg *config.Config, objects storage.ObjectStorage) map[string]Source {
	sources := map[string]Source{
		"local": LocalSource{Dir: cfg.Pipeline.InboxDir},
	}
	if objects != nil {
		sources["s3"] = ObjectSource{Storage: objects, Prefix: cfg.Pipeline.S3Prefix}
	}
	if cfg.Drive.CredentialsJSON != "" {
		svc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			log.Warn().Err(err).Msg("pipeline: drive source disabled")
		} else {
			sources["drive"] = DriveSource{Downloader: drive.NewDownloader(svc), FolderID: cfg.Drive.FolderID}
		}
	}
	return sources
}

// LocalSource walks a directory tree for CSV and XLSX files.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Name() string { return "local" }

func (s LocalSource) Fetch(_ context.Context, _ string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.Dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		// skip dotfiles and Excel lock files
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			return nil
		}
		if ingest.IsSupported(name) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.Dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// DriveSource downloads a Google Drive folder.
type DriveSource struct {
	Downloader *drive.Downloader
	FolderID   string
	FolderPath string
}

func (s DriveSource) Name() string { return "drive" }

func (s DriveSource) Fetch(ctx context.Context, dir string) ([]string, error) {
	files, err := s.Downloader.DownloadFolder(ctx, drive.DownloadOptions{
		FolderID:    s.FolderID,
		FolderPath:  s.FolderPath,
		DownloadDir: dir,
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ObjectSource downloads every supported object under Prefix, keeping the
// key layout so kind folders survive.
type ObjectSource struct {
	Storage storage.ObjectStorage
	Prefix  string
}

func (s ObjectSource) Name() string { return "s3" }

func (s ObjectSource) Fetch(ctx context.Context, dir string) ([]string, error) {
	objects, err := s.Storage.ListObjects(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}

	root := filepath.Clean(dir)
	var files []string
	for _, obj := range objects {
		if !ingest.IsSupported(obj.Key) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.Prefix), "/")
		local := filepath.Join(root, filepath.FromSlash(rel))
		if !strings.HasPrefix(local, root+string(os.PathSeparator)) {
			continue
		}
		if err := s.Storage.DownloadObject(ctx, obj.Key, local); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		files = append(files, local)
	}
	sort.Strings(files)
	return files, nil
}
