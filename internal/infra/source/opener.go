package source

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

// Opener picks a reader by file extension. Anything other than .csv is read
// as newline-delimited JSON.
type Opener struct {
	logger *slog.Logger
}

// NewOpener is a wire provider for batch sources.
func NewOpener(logger *slog.Logger) *Opener {
	return &Opener{logger: logger.With("component", "source.opener")}
}

// Open implements batchsum.SourceOpener.
func (o *Opener) Open(path string, chunkSize int) (batchsum.BatchSource, error) {
	if chunkSize <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidConfig, "chunk size must be positive", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path, nil)
		}
		return nil, notFound(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, notFound(path, fmt.Errorf("%s is not a regular file", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}

	format := formatOf(path)
	o.logger.Debug("opened input", "path", path, "format", format, "bytes", info.Size(), "chunkSize", chunkSize)
	switch format {
	case FormatCSV:
		return newCSVSource(f, chunkSize), nil
	default:
		return newJSONLSource(f, chunkSize), nil
	}
}

// Input formats understood by the opener.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSONL
}

func notFound(path string, err error) error {
	return apperrors.Wrap(apperrors.CodeSourceNotFound, fmt.Sprintf("input data is not found at %s", path), err)
}
