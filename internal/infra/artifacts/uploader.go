package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

const csvMimeType = "text/csv"

// Uploader copies the datasets of a finished run to object storage under
// <prefix>/<runID>/<file>.
type Uploader struct {
	storage ObjectStorage
	prefix  string
	logger  *slog.Logger
}

// NewUploader constructs an uploader. A nil storage disables uploads.
func NewUploader(storage ObjectStorage, prefix string, logger *slog.Logger) *Uploader {
	return &Uploader{storage: storage, prefix: prefix, logger: logger.With("component", "artifacts.uploader")}
}

// Enabled reports whether uploads go anywhere.
func (u *Uploader) Enabled() bool {
	return u != nil && u.storage != nil
}

// UploadRun uploads the clean and output datasets of report. Files that were
// never created, as for an empty input, are skipped.
func (u *Uploader) UploadRun(ctx context.Context, report batchsum.RunReport) ([]StoredObject, error) {
	if !u.Enabled() {
		return nil, nil
	}
	var (
		stored []StoredObject
		errs   []error
	)
	for _, local := range []string{report.CleanPath, report.OutputPath} {
		if local == "" {
			continue
		}
		data, err := os.ReadFile(local)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", local, err))
			continue
		}
		key := u.key(report, local)
		obj, err := u.storage.Put(ctx, key, data, csvMimeType)
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		u.logger.Info("artifact uploaded", "key", obj.Key, "bytes", obj.Size)
		stored = append(stored, obj)
	}
	return stored, errors.Join(errs...)
}

func (u *Uploader) key(report batchsum.RunReport, local string) string {
	return path.Join(u.prefix, report.RunID.String(), filepath.Base(local))
}
